package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/mlkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns defaults for a local collector.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded for stage executions.
type Metrics struct {
	stageTotal    metric.Int64Counter
	stageDuration metric.Float64Histogram
	foldScore     metric.Float64Histogram
	errorTotal    metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	stageTotal, err := meter.Int64Counter("stage.calls.total",
		metric.WithDescription("Total number of stage fit and transform calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.calls.total counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("stage.duration",
		metric.WithDescription("Duration of stage fit and transform calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.duration histogram: %w", err)
	}

	foldScore, err := meter.Float64Histogram("crossval.fold.score",
		metric.WithDescription("Per-fold cross-validation scores"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating crossval.fold.score histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("stage.error.total",
		metric.WithDescription("Total stage errors by operation and stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage.error.total counter: %w", err)
	}

	return &Metrics{
		stageTotal:    stageTotal,
		stageDuration: stageDuration,
		foldScore:     foldScore,
		errorTotal:    errorTotal,
	}, nil
}

// RecordStage records one fit or transform call.
func (m *Metrics) RecordStage(ctx context.Context, stage, op, status string, duration time.Duration) {
	m.stageTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("operation", op),
		attribute.String("status", status),
	))
	m.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("operation", op),
	))
}

// RecordFoldScore records the score of one cross-validation fold.
func (m *Metrics) RecordFoldScore(ctx context.Context, stage string, score float64) {
	m.foldScore.Record(ctx, score, metric.WithAttributes(
		attribute.String("stage", stage),
	))
}

// RecordError records an error by operation and stage.
func (m *Metrics) RecordError(ctx context.Context, op, stage string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("stage", stage),
	))
}
