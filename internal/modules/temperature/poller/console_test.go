package poller

import (
	"bytes"
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"temperature-consumer/internal/modules/temperature/types"
)

var twoDecimals = regexp.MustCompile(`: -?\d+\.\d{2} °C$`)

func TestFormatResult(t *testing.T) {
	at := time.Date(2026, 10, 19, 9, 5, 3, 123456000, time.UTC)

	tests := []struct {
		name   string
		avg    decimal.NullDecimal
		window time.Duration
		want   string
	}{
		{
			name:   "single reading of 20",
			avg:    validAvg("20.0"),
			window: 10 * time.Minute,
			want:   "2026-10-19 09:05:03.123456 - Average temperature last 10 minutes: 20.00 °C",
		},
		{
			name:   "rounds 19.999 up",
			avg:    validAvg("19.999"),
			window: 10 * time.Minute,
			want:   "2026-10-19 09:05:03.123456 - Average temperature last 10 minutes: 20.00 °C",
		},
		{
			name:   "half rounds away from zero",
			avg:    validAvg("21.125"),
			window: 10 * time.Minute,
			want:   "2026-10-19 09:05:03.123456 - Average temperature last 10 minutes: 21.13 °C",
		},
		{
			name:   "long numeric average",
			avg:    validAvg("22.3333333333333333"),
			window: 10 * time.Minute,
			want:   "2026-10-19 09:05:03.123456 - Average temperature last 10 minutes: 22.33 °C",
		},
		{
			name:   "below freezing",
			avg:    validAvg("-3.456"),
			window: 10 * time.Minute,
			want:   "2026-10-19 09:05:03.123456 - Average temperature last 10 minutes: -3.46 °C",
		},
		{
			name:   "no data",
			avg:    decimal.NullDecimal{},
			window: 10 * time.Minute,
			want:   "2026-10-19 09:05:03.123456 - No data in last 10 minutes.",
		},
		{
			name:   "one minute window",
			avg:    decimal.NullDecimal{},
			window: time.Minute,
			want:   "2026-10-19 09:05:03.123456 - No data in last 1 minute.",
		},
		{
			name:   "sub-minute window",
			avg:    validAvg("1"),
			window: 90 * time.Second,
			want:   "2026-10-19 09:05:03.123456 - Average temperature last 1m30s: 1.00 °C",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatResult(types.Result{PolledAt: at, Window: tt.window, Average: tt.avg})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResult_AlwaysTwoDecimals(t *testing.T) {
	for _, v := range []string{"0", "1", "19.5", "19.994", "19.995", "100.123456", "-0.5", "37.7"} {
		got := FormatResult(types.Result{Window: DefaultWindow, Average: validAvg(v)})
		assert.Regexp(t, twoDecimals, got, "average %s", v)
	}
}

func TestFormatResult_NoDataNeverNumeric(t *testing.T) {
	got := FormatResult(types.Result{Window: DefaultWindow})
	assert.NotContains(t, got, "°C")
	assert.Contains(t, got, "No data in last 10 minutes.")
}

func TestConsoleReporter_WritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)

	err := r.Report(context.Background(), types.Result{
		PolledAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Window:   DefaultWindow,
		Average:  validAvg("20"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02 03:04:05.000000 - Average temperature last 10 minutes: 20.00 °C\n", buf.String())
}
