package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/mlkit/logger"
)

// TracerName is the instrumentation scope of every mlkit span.
const TracerName = "github.com/kbukum/mlkit"

// Operations, used as span name segments and metric attributes.
const (
	OpFit       = "fit"
	OpTransform = "transform"
	OpFold      = "fold"
)

// Span attribute keys.
const (
	AttrStage     = "mlkit.stage"
	AttrOperation = "mlkit.operation"
	AttrRows      = "mlkit.rows"
	AttrCols      = "mlkit.cols"
	AttrFold      = "mlkit.fold"
	AttrScore     = "mlkit.score"
	AttrRunID     = "mlkit.run_id"
)

// TracerConfig configures OTLP trace export.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Endpoint is the OTLP HTTP collector as host:port.
	Endpoint string
	Insecure bool
	// SampleRate is the fraction of cross-validation runs traced, 0 to 1.
	SampleRate float64
}

// DefaultTracerConfig returns defaults for a local collector.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// sampler decides at the root span only; stage and fold spans inherit
// the decision so a run is traced whole or not at all.
func (c *TracerConfig) sampler() sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case c.SampleRate >= 1:
		root = sdktrace.AlwaysSample()
	case c.SampleRate <= 0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(c.SampleRate)
	}
	return sdktrace.ParentBased(root)
}

// InitTracer installs a global tracer provider exporting to cfg.Endpoint.
// The caller shuts it down on exit to flush pending spans.
func InitTracer(ctx context.Context, cfg *TracerConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(cfg.sampler()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Info("tracer initialized", logger.Fields(
		"service", cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
	))
	return tp, nil
}

// newResource describes the exporting binary; shared by traces and metrics.
func newResource(serviceName, serviceVersion, environment string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironment(environment),
		),
	)
}

// Span is an open stage or fold span.
type Span struct {
	span trace.Span
}

func start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, s := otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{span: s}
}

// StartStageSpan opens "{prefix}.{op}.{stage}" carrying the input shape.
func StartStageSpan(ctx context.Context, prefix, op, stage string, rows, cols int) (context.Context, *Span) {
	return start(ctx, prefix+"."+op+"."+stage,
		attribute.String(AttrStage, stage),
		attribute.String(AttrOperation, op),
		attribute.Int(AttrRows, rows),
		attribute.Int(AttrCols, cols),
	)
}

// StartFoldSpan opens "crossval.fold" for one held-out fold of a run;
// rows is the size of the held-out split.
func StartFoldSpan(ctx context.Context, runID, stage string, fold, rows int) (context.Context, *Span) {
	return start(ctx, "crossval."+OpFold,
		attribute.String(AttrRunID, runID),
		attribute.String(AttrStage, stage),
		attribute.Int(AttrFold, fold),
		attribute.Int(AttrRows, rows),
	)
}

// SetScore records the score of a fold.
func (s *Span) SetScore(score float64) {
	s.span.SetAttributes(attribute.Float64(AttrScore, score))
}

// End closes the span. A non-nil err is recorded and marks the span failed.
func (s *Span) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}
