package temperature

import (
	"context"
	"io"
	"log/slog"

	"temperature-consumer/internal/config"
	"temperature-consumer/internal/db"
	"temperature-consumer/internal/modules/temperature/poller"
	"temperature-consumer/internal/modules/temperature/repository"
)

// NewOpener returns an Opener that dials the configured datastore for every
// call. Each Store owns exactly one connection.
func NewOpener(cfg config.Config, logger *slog.Logger) poller.Opener {
	return func(ctx context.Context) (poller.Store, error) {
		conn, err := db.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return repository.NewRepository(conn), nil
	}
}

// NewPoller wires the temperature feature: datastore opener, console output
// on out and any optional sinks.
func NewPoller(cfg config.Config, logger *slog.Logger, out io.Writer, sinks ...poller.Reporter) *poller.Poller {
	return poller.New(
		NewOpener(cfg, logger),
		poller.NewConsoleReporter(out),
		poller.WithInterval(cfg.PollInterval),
		poller.WithWindow(cfg.LookbackWindow),
		poller.WithLogger(logger),
		poller.WithSinks(sinks...),
	)
}
