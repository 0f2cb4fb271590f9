package stage

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.yaml.in/yaml/v3"

	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/observability"
)

// --- test helpers ---

// funcStage is a Stage whose behaviour is supplied by closures.
type funcStage struct {
	name      string
	fit       func(ctx context.Context, x *frame.Frame, y frame.Series) error
	transform func(ctx context.Context, x *frame.Frame) (*frame.Frame, error)
	fits      *atomic.Int32
}

func (f *funcStage) Name() string { return f.name }

func (f *funcStage) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	if f.fits != nil {
		f.fits.Add(1)
	}
	if f.fit == nil {
		return nil
	}
	return f.fit(ctx, x, y)
}

func (f *funcStage) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	if f.transform == nil {
		return x, nil
	}
	return f.transform(ctx, x)
}

func (f *funcStage) Clone() Stage {
	c := *f
	return &c
}

type group struct {
	name     string
	children []Stage
}

func (g *group) Name() string                                          { return g.name }
func (g *group) Kind() string                                          { return "group" }
func (g *group) Children() []Stage                                     { return g.children }
func (g *group) Fit(context.Context, *frame.Frame, frame.Series) error { return nil }
func (g *group) Clone() Stage                                          { return &group{g.name, CloneAll(g.children)} }
func (g *group) Transform(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
	return x, nil
}

type partial struct{ Unimplemented }

func (p partial) Clone() Stage { return p }

func numbers(vals ...float64) *frame.Frame {
	return frame.MustNew(frame.NumericSeries("x", vals))
}

// --- contract tests ---

func TestFitTransform_FitsThenTransforms(t *testing.T) {
	var order []string
	s := &funcStage{
		name: "double",
		fit: func(context.Context, *frame.Frame, frame.Series) error {
			order = append(order, "fit")
			return nil
		},
		transform: func(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
			order = append(order, "transform")
			in := x.Col(0).Num
			out := make([]float64, len(in))
			for i, v := range in {
				out[i] = 2 * v
			}
			return frame.MustNew(frame.NumericSeries("x", out)), nil
		},
	}

	out, err := FitTransform(context.Background(), s, numbers(1, 2), frame.Series{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(order, ",") != "fit,transform" {
		t.Errorf("expected fit then transform, got %v", order)
	}
	if got := out.Col(0).Num; got[0] != 2 || got[1] != 4 {
		t.Errorf("unexpected output %v", got)
	}
}

func TestFitTransform_FitErrorStops(t *testing.T) {
	fitErr := stderrors.New("boom")
	transformed := false
	s := &funcStage{
		name: "broken",
		fit:  func(context.Context, *frame.Frame, frame.Series) error { return fitErr },
		transform: func(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
			transformed = true
			return x, nil
		},
	}
	if _, err := FitTransform(context.Background(), s, numbers(1), frame.Series{}); !stderrors.Is(err, fitErr) {
		t.Fatalf("expected fit error, got %v", err)
	}
	if transformed {
		t.Error("transform must not run after a failed fit")
	}
}

func TestUnimplemented(t *testing.T) {
	p := partial{Unimplemented{StageName: "half"}}

	err := p.Fit(context.Background(), numbers(1), frame.Series{})
	if !errors.HasCode(err, errors.ErrCodeNotImplemented) {
		t.Errorf("expected NOT_IMPLEMENTED from fit, got %v", err)
	}
	_, err = p.Transform(context.Background(), numbers(1))
	if !errors.HasCode(err, errors.ErrCodeNotImplemented) {
		t.Errorf("expected NOT_IMPLEMENTED from transform, got %v", err)
	}
	if !strings.Contains(err.Error(), `"half"`) {
		t.Errorf("expected stage name in error, got %q", err.Error())
	}
	if _, err := FitTransform(context.Background(), p, numbers(1), frame.Series{}); !errors.HasCode(err, errors.ErrCodeNotImplemented) {
		t.Errorf("expected NOT_IMPLEMENTED from fit_transform, got %v", err)
	}
}

func TestCheckTarget(t *testing.T) {
	x := numbers(1, 2, 3)
	tests := []struct {
		name string
		y    frame.Series
		code errors.ErrorCode
	}{
		{"absent target", frame.Series{}, ""},
		{"matching target", frame.NumericSeries("y", []float64{0, 1, 0}), ""},
		{"short target", frame.NumericSeries("y", []float64{0, 1}), errors.ErrCodeShapeMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckTarget("s", x, tc.y)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.HasCode(err, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

func TestRequireTarget(t *testing.T) {
	if err := RequireTarget("knn", numbers(1), frame.Series{}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT for absent target, got %v", err)
	}
	empty := frame.MustNew(frame.NumericSeries("x", []float64{}))
	if err := RequireTarget("knn", empty, frame.NumericSeries("y", []float64{})); !errors.HasCode(err, errors.ErrCodeInsufficientData) {
		t.Errorf("expected INSUFFICIENT_DATA for zero rows, got %v", err)
	}
}

func TestFitted_Guard(t *testing.T) {
	var f Fitted
	if err := f.Check("knn"); !errors.HasCode(err, errors.ErrCodeNotFitted) {
		t.Fatalf("expected NOT_FITTED, got %v", err)
	}
	f.MarkFitted()
	if err := f.Check("knn"); err != nil {
		t.Fatalf("unexpected error after fit: %v", err)
	}
	f.Reset()
	if f.IsFitted() {
		t.Error("expected Reset to clear the fitted flag")
	}
}

func TestPredict(t *testing.T) {
	s := &funcStage{name: "id"}
	got, err := Predict(context.Background(), s, numbers(4, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Num[1] != 5 {
		t.Errorf("unexpected prediction %v", got.Num)
	}

	wide := &funcStage{name: "wide", transform: func(_ context.Context, x *frame.Frame) (*frame.Frame, error) {
		return frame.HConcat(x, x)
	}}
	if _, err := Predict(context.Background(), wide, numbers(1)); !errors.HasCode(err, errors.ErrCodeShapeMismatch) {
		t.Errorf("expected SHAPE_MISMATCH for two output columns, got %v", err)
	}
}

func TestPredictions_Naming(t *testing.T) {
	f := Predictions("knn", frame.CategoricalSeries("whatever", []string{"a"}))
	if f.Names()[0] != "knn" {
		t.Errorf("expected column named after the stage, got %v", f.Names())
	}
	if Predictions("", frame.NumericSeries("p", []float64{1})).Names()[0] != PredictionColumn {
		t.Error("expected default prediction column name")
	}
}

// --- parallel helper ---

func TestRun_LowestIndexErrorWins(t *testing.T) {
	for _, parallel := range []int{0, 1, 4, 16} {
		err := Run(context.Background(), 10, parallel, func(_ context.Context, i int) error {
			if i == 7 || i == 3 {
				time.Sleep(time.Duration(10-i) * time.Millisecond)
				return errors.InsufficientData("member", "failed").WithDetail("index", i)
			}
			return nil
		})
		app, ok := errors.AsAppError(err)
		if !ok || app.Details["index"] != 3 {
			t.Fatalf("parallel=%d: expected index 3 error, got %v", parallel, err)
		}
	}
}

func TestRun_AllSlotsWritten(t *testing.T) {
	out := make([]int, 50)
	err := Run(context.Background(), len(out), 8, func(_ context.Context, i int) error {
		out[i] = i * i
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if v != i*i {
			t.Fatalf("slot %d = %d", i, v)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := Run(ctx, 3, 0, func(context.Context, int) error {
		called = true
		return nil
	})
	if !stderrors.Is(err, context.Canceled) || called {
		t.Fatalf("expected cancellation before any call, got %v (called=%v)", err, called)
	}
}

// --- explain ---

func TestExplain_NestedTree(t *testing.T) {
	root := &group{name: "outer", children: []Stage{
		&funcStage{name: "scale"},
		WithLogging(&group{name: "inner", children: []Stage{
			&funcStage{name: "knn"},
			&funcStage{name: "tree"},
		}}, logger.NewNop()),
	}}

	want := "outer [group]\n  scale [leaf]\n  inner [group]\n    knn [leaf]\n    tree [leaf]\n"
	if got := Explain(root); got != want {
		t.Errorf("unexpected explain output:\n%s\nwant:\n%s", got, want)
	}

	nodes, depth := Describe(root).Size()
	if nodes != 5 || depth != 3 {
		t.Errorf("expected 5 nodes at depth 3, got %d/%d", nodes, depth)
	}

	raw, err := yaml.Marshal(Describe(root))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(raw), "kind: group") {
		t.Errorf("expected yaml kinds, got %s", raw)
	}
}

// --- middleware ---

func TestWithTracing_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	}()

	traced := WithTracing(&funcStage{name: "scale"}, "mlkit")
	if traced.Name() != "scale" {
		t.Fatalf("expected name 'scale', got %q", traced.Name())
	}
	if _, err := FitTransform(context.Background(), traced, numbers(1, 2), frame.Series{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "mlkit.fit.scale" || spans[1].Name != "mlkit.transform.scale" {
		t.Errorf("unexpected span names %q, %q", spans[0].Name, spans[1].Name)
	}
}

func TestWithTracing_PropagatesError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	}()

	fitErr := stderrors.New("fail")
	traced := WithTracing(&funcStage{name: "bad", fit: func(context.Context, *frame.Frame, frame.Series) error {
		return fitErr
	}}, "mlkit")
	if err := traced.Fit(context.Background(), numbers(1), frame.Series{}); !stderrors.Is(err, fitErr) {
		t.Fatalf("expected stage error, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "fail" {
		t.Errorf("expected error status, got %+v", spans[0].Status)
	}
}

func TestWithMetrics(t *testing.T) {
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fitErr := stderrors.New("fail")
	s := WithMetrics(&funcStage{name: "m", fit: func(context.Context, *frame.Frame, frame.Series) error {
		return fitErr
	}}, metrics)

	if err := s.Fit(context.Background(), numbers(1), frame.Series{}); !stderrors.Is(err, fitErr) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if _, err := s.Transform(context.Background(), numbers(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWithLogging_ReportsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "mlkit", &buf)
	s := WithLogging(&funcStage{name: "noisy", fit: func(context.Context, *frame.Frame, frame.Series) error {
		return errors.InsufficientData("noisy", "no rows")
	}}, log)

	_ = s.Fit(context.Background(), numbers(1), frame.Series{})
	if !strings.Contains(buf.String(), `"stage":"noisy"`) || !strings.Contains(buf.String(), "stage failed") {
		t.Errorf("expected failure log line, got %q", buf.String())
	}
}

func TestMiddleware_CloneIsFresh(t *testing.T) {
	var fits atomic.Int32
	inner := &funcStage{name: "leaf", fits: &fits}
	wrapped := WithLogging(WithTracing(inner, "mlkit"), nil)

	c := wrapped.Clone()
	if c == wrapped {
		t.Fatal("expected a distinct clone")
	}
	if _, ok := c.(Wrapper); !ok {
		t.Fatal("expected clone to keep the wrapper")
	}
	if err := c.Fit(context.Background(), numbers(1), frame.Series{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fits.Load() != 1 {
		t.Errorf("expected clone to delegate to a copy of the inner stage, fits=%d", fits.Load())
	}
	if Describe(c).Name != "leaf" {
		t.Errorf("expected wrappers to be transparent in Describe")
	}
}
