package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Result is the outcome of one poll cycle.
type Result struct {
	// PolledAt is the wall-clock time the query was issued.
	PolledAt time.Time
	// WindowStart is PolledAt minus Window.
	WindowStart time.Time
	Window      time.Duration
	// Average is invalid when no readings fall inside the window.
	Average decimal.NullDecimal
}

// HasData reports whether at least one reading matched the window.
func (r Result) HasData() bool {
	return r.Average.Valid
}
