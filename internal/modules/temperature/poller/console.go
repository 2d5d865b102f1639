package poller

import (
	"context"
	"fmt"
	"io"
	"time"

	"temperature-consumer/internal/modules/temperature/types"
)

const (
	StartedMessage = "Starting the temperature consumer..."
	StoppedMessage = "Stopped consuming data."

	// TimestampLayout renders local wall-clock time with microseconds.
	TimestampLayout = "2006-01-02 15:04:05.000000"
)

// ConsoleReporter writes one human-readable line per poll result.
type ConsoleReporter struct {
	w io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (c *ConsoleReporter) Report(_ context.Context, r types.Result) error {
	_, err := fmt.Fprintln(c.w, FormatResult(r))
	return err
}

// FormatResult renders r as either the average line (two decimals, °C) or
// the no-data line.
func FormatResult(r types.Result) string {
	ts := r.PolledAt.Format(TimestampLayout)
	window := describeWindow(r.Window)
	if !r.HasData() {
		return fmt.Sprintf("%s - No data in last %s.", ts, window)
	}
	return fmt.Sprintf("%s - Average temperature last %s: %s °C", ts, window, r.Average.Decimal.StringFixed(2))
}

func describeWindow(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int64(d/time.Minute))
	default:
		return d.String()
	}
}
