package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"temperature-consumer/internal/config"
	temperature "temperature-consumer/internal/modules/temperature"
	"temperature-consumer/internal/modules/temperature/poller"
	"temperature-consumer/internal/mqtt"
	"temperature-consumer/internal/telemetry"
)

// Run prints the start line, polls until ctx is canceled and prints the stop
// line. Datastore failures are returned as-is and no stop line is printed.
func Run(ctx context.Context, cfg config.Config, out io.Writer, appName string) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"dbDriver", cfg.DBDriver,
		"dbHost", cfg.DBHost,
		"dbPort", cfg.DBPort,
		"dbName", cfg.DBName,
		"sqlitePath", cfg.SQLitePath,
		"pollInterval", cfg.PollInterval,
		"lookbackWindow", cfg.LookbackWindow,
		"mqttBroker", cfg.MQTTBroker,
		"mqttTopic", cfg.MQTTTopic,
		"otlpEndpoint", cfg.OTLPEndpoint,
	)

	if _, err := fmt.Fprintln(out, poller.StartedMessage); err != nil {
		return err
	}

	var sinks []poller.Reporter

	mp, err := telemetry.NewMeterProvider(ctx, cfg.OTLPEndpoint, appName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()
	recorder, err := telemetry.NewRecorder(mp)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	sinks = append(sinks, recorder)

	if cfg.MQTTEnabled() {
		publisher := mqtt.NewPublisher(cfg, slog.Default())
		// Short timeout so an unavailable broker does not delay the first poll.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
		defer publisher.Disconnect()
		sinks = append(sinks, publisher)
	}

	p := temperature.NewPoller(cfg, slog.Default(), out, sinks...)
	err = p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if _, werr := fmt.Fprintln(out, poller.StoppedMessage); werr != nil {
			return werr
		}
	}
	return err
}
