// Package telemetry exports poll results as OpenTelemetry metrics over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"temperature-consumer/internal/modules/temperature/types"
)

const meterName = "temperature-consumer/poller"

// NewMeterProvider returns a MeterProvider exporting via OTLP/gRPC to endpoint.
// endpoint may be host:port or a URL; only host:port is used. If empty, a
// provider with no readers is returned, so recording is a no-op.
func NewMeterProvider(ctx context.Context, endpoint, serviceName string, insecureOverride bool) (*sdkmetric.MeterProvider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return sdkmetric.NewMeterProvider(), nil
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	insecure := insecureOverride || (u.Scheme != "https")

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(u.Host)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))),
	), nil
}

// Recorder records each poll result: the latest average as a gauge and a
// counter of polls split by outcome.
type Recorder struct {
	average metric.Float64Gauge
	polls   metric.Int64Counter
}

func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	meter := mp.Meter(meterName)

	average, err := meter.Float64Gauge("temperature.average",
		metric.WithDescription("Average temperature over the lookback window"),
		metric.WithUnit("Cel"),
	)
	if err != nil {
		return nil, fmt.Errorf("temperature.average gauge: %w", err)
	}

	polls, err := meter.Int64Counter("temperature.polls",
		metric.WithDescription("Completed poll cycles"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, fmt.Errorf("temperature.polls counter: %w", err)
	}

	return &Recorder{average: average, polls: polls}, nil
}

func (r *Recorder) Report(ctx context.Context, res types.Result) error {
	window := attribute.Float64("window_seconds", res.Window.Seconds())
	if !res.HasData() {
		r.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "no_data"), window))
		return nil
	}

	avg, _ := res.Average.Decimal.Round(2).Float64()
	r.average.Record(ctx, avg, metric.WithAttributes(window))
	r.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "value"), window))
	return nil
}
