package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"temperature-consumer/internal/config"
)

// New builds the process logger. Dev builds get colored tint output; release
// builds log JSON tagged with version and environment. Logs go to w so that
// stdout stays reserved for poll results.
func New(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}
