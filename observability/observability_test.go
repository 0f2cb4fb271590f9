package observability

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func useRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestDefaultTracerConfig(t *testing.T) {
	cfg := DefaultTracerConfig("mlkit")

	if cfg.ServiceName != "mlkit" {
		t.Errorf("expected ServiceName 'mlkit', got %s", cfg.ServiceName)
	}
	if cfg.Endpoint != "localhost:4318" {
		t.Errorf("expected Endpoint 'localhost:4318', got %s", cfg.Endpoint)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected SampleRate 1.0, got %f", cfg.SampleRate)
	}
	if !cfg.Insecure {
		t.Error("expected Insecure to be true")
	}
}

func TestDefaultMeterConfig(t *testing.T) {
	cfg := DefaultMeterConfig("mlkit")

	if cfg.ServiceName != "mlkit" {
		t.Errorf("expected ServiceName 'mlkit', got %s", cfg.ServiceName)
	}
	if cfg.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", cfg.Interval)
	}
}

func TestNewMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	metrics, err := NewMetrics(meter)
	if err != nil {
		t.Fatalf("unexpected error creating metrics: %v", err)
	}
	if metrics == nil {
		t.Fatal("expected non-nil metrics")
	}

	ctx := context.Background()
	metrics.RecordStage(ctx, "knn", OpFit, "ok", 10*time.Millisecond)
	metrics.RecordStage(ctx, "knn", OpTransform, "error", time.Millisecond)
	metrics.RecordFoldScore(ctx, "vote", 93.3)
	metrics.RecordError(ctx, OpTransform, "knn")
}

func TestMeter(t *testing.T) {
	if Meter("test-meter") == nil {
		t.Fatal("expected non-nil meter")
	}
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		got[kv.Key] = kv.Value
	}
	return got
}

func TestStartStageSpan(t *testing.T) {
	exporter := useRecorder(t)

	ctx, span := StartStageSpan(context.Background(), "mlkit", OpFit, "knn", 150, 4)
	if !trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("expected the span to be stored in the context")
	}
	span.End(nil)

	spans := exporter.GetSpans().Snapshots()
	if len(spans) != 1 || spans[0].Name() != "mlkit.fit.knn" {
		t.Fatalf("expected one span named mlkit.fit.knn, got %v", spans)
	}
	got := attrs(spans[0])
	if got[AttrStage].AsString() != "knn" || got[AttrOperation].AsString() != OpFit {
		t.Errorf("unexpected stage attributes %v", got)
	}
	if got[AttrRows].AsInt64() != 150 || got[AttrCols].AsInt64() != 4 {
		t.Errorf("expected shape 150x4, got %v", got)
	}
	if spans[0].Status().Code != codes.Unset {
		t.Errorf("expected unset status on success, got %v", spans[0].Status())
	}
}

func TestStartFoldSpan_Score(t *testing.T) {
	exporter := useRecorder(t)

	_, span := StartFoldSpan(context.Background(), "run-1", "vote", 2, 30)
	span.SetScore(96.5)
	span.End(nil)

	spans := exporter.GetSpans().Snapshots()
	if len(spans) != 1 || spans[0].Name() != "crossval.fold" {
		t.Fatalf("expected one crossval.fold span, got %v", spans)
	}
	got := attrs(spans[0])
	if got[AttrRunID].AsString() != "run-1" || got[AttrFold].AsInt64() != 2 || got[AttrRows].AsInt64() != 30 {
		t.Errorf("unexpected fold attributes %v", got)
	}
	if got[AttrScore].AsFloat64() != 96.5 {
		t.Errorf("expected score 96.5, got %v", got[AttrScore])
	}
}

func TestSpan_EndWithError(t *testing.T) {
	exporter := useRecorder(t)

	nested, parent := StartStageSpan(context.Background(), "mlkit", OpFit, "vote", 10, 2)
	_, child := StartFoldSpan(nested, "run-1", "vote", 0, 5)
	child.End(fmt.Errorf("fold 0 failed"))
	parent.End(nil)

	spans := exporter.GetSpans().Snapshots()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	fold := spans[0]
	if fold.Parent().SpanID() != spans[1].SpanContext().SpanID() {
		t.Error("expected the fold span to be a child of the stage span")
	}
	if fold.Status().Code != codes.Error || fold.Status().Description != "fold 0 failed" {
		t.Errorf("expected error status, got %v", fold.Status())
	}
	if events := fold.Events(); len(events) != 1 || events[0].Name != "exception" {
		t.Errorf("expected an exception event, got %v", events)
	}
}

func TestTracerConfig_Sampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.rate), func(t *testing.T) {
			cfg := TracerConfig{SampleRate: tc.rate}
			desc := cfg.sampler().Description()
			if !strings.HasPrefix(desc, "ParentBased{root:"+tc.want) {
				t.Errorf("sampler = %s, want parent-based %s", desc, tc.want)
			}
		})
	}
}

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		insecure   bool
	}{
		{"always sample", 1.0, true},
		{"never sample", 0.0, true},
		{"ratio based", 0.5, true},
		{"secure", 1.0, false},
	}

	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultTracerConfig("mlkit-test")
			cfg.SampleRate = tc.sampleRate
			cfg.Insecure = tc.insecure

			tp, err := InitTracer(context.Background(), &cfg)
			if err != nil {
				t.Skipf("InitTracer failed (resource schema conflict): %v", err)
			}
			_ = tp.Shutdown(context.Background())
		})
	}
}

func TestInitMeter(t *testing.T) {
	prev := otel.GetMeterProvider()
	defer otel.SetMeterProvider(prev)

	for _, interval := range []time.Duration{15 * time.Second, 0} {
		cfg := DefaultMeterConfig("mlkit-test")
		cfg.Interval = interval

		mp, err := InitMeter(context.Background(), &cfg)
		if err != nil {
			t.Skipf("InitMeter failed (resource schema conflict): %v", err)
		}
		_ = mp.Shutdown(context.Background())
	}
}
