// Package poller runs the periodic temperature average query and reports each
// result. It is strictly sequential: one datastore round-trip, then reporting,
// then a wait, with nothing in flight concurrently.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"temperature-consumer/internal/modules/temperature/types"
)

const (
	DefaultInterval = 600 * time.Second
	DefaultWindow   = 10 * time.Minute
)

// Store is a scoped datastore session. It is opened for a single fetch and
// closed right after.
type Store interface {
	AverageSince(ctx context.Context, since time.Time) (decimal.NullDecimal, error)
	Close() error
}

// Opener establishes a fresh Store.
type Opener func(ctx context.Context) (Store, error)

// Reporter receives every poll result.
type Reporter interface {
	Report(ctx context.Context, r types.Result) error
}

type Poller struct {
	open     Opener
	console  Reporter
	sinks    []Reporter
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Poller)

// WithInterval sets the pause between cycles. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithWindow sets the lookback window. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSinks adds best-effort reporters. Their failures are logged and never
// stop the loop.
func WithSinks(sinks ...Reporter) Option {
	return func(p *Poller) {
		for _, s := range sinks {
			if s != nil {
				p.sinks = append(p.sinks, s)
			}
		}
	}
}

// New builds a poller. console failures are fatal to Run.
func New(open Opener, console Reporter, opts ...Option) *Poller {
	p := &Poller{
		open:     open,
		console:  console,
		interval: DefaultInterval,
		window:   DefaultWindow,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch computes the average temperature over the trailing window. A missing
// average (no readings) is reported through Result.Average, not as an error.
// Datastore failures are returned as *DatastoreError.
func (p *Poller) Fetch(ctx context.Context) (types.Result, error) {
	polledAt := p.now()
	res := types.Result{
		PolledAt:    polledAt,
		WindowStart: polledAt.Add(-p.window),
		Window:      p.window,
	}

	store, err := p.open(ctx)
	if err != nil {
		return res, &DatastoreError{Op: OpConnect, Err: err}
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			p.logger.Warn("close datastore", "error", closeErr)
		}
	}()

	avg, err := store.AverageSince(ctx, res.WindowStart)
	if err != nil {
		return res, &DatastoreError{Op: OpQuery, Err: err}
	}
	res.Average = avg

	p.logger.Debug("poll complete",
		"window_start", res.WindowStart,
		"has_data", res.HasData(),
	)
	return res, nil
}

// Run polls until ctx is canceled or the datastore fails. It returns
// ctx.Err() on cancellation and the *DatastoreError otherwise.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started",
		"interval", p.interval,
		"window", p.window,
		"sinks", len(p.sinks),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := p.console.Report(ctx, res); err != nil {
			return fmt.Errorf("report: %w", err)
		}
		for _, s := range p.sinks {
			if err := s.Report(ctx, res); err != nil {
				p.logger.Warn("sink report failed", "sink", fmt.Sprintf("%T", s), "error", err)
			}
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
