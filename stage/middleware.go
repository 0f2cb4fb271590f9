package stage

import (
	"context"
	"time"

	"github.com/kbukum/mlkit/frame"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/observability"
)

// WithTracing wraps a stage with OpenTelemetry span creation.
// Each call creates a span named "{prefix}.fit.{name}" or "{prefix}.transform.{name}".
func WithTracing(s Stage, prefix string) Stage {
	return &tracingStage{inner: s, prefix: prefix}
}

type tracingStage struct {
	inner  Stage
	prefix string
}

func (t *tracingStage) Name() string  { return t.inner.Name() }
func (t *tracingStage) Unwrap() Stage { return t.inner }
func (t *tracingStage) Clone() Stage  { return WithTracing(t.inner.Clone(), t.prefix) }

func (t *tracingStage) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	ctx, span := observability.StartStageSpan(ctx, t.prefix, observability.OpFit, t.inner.Name(), x.Rows(), x.NumCols())
	err := t.inner.Fit(ctx, x, y)
	span.End(err)
	return err
}

func (t *tracingStage) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	ctx, span := observability.StartStageSpan(ctx, t.prefix, observability.OpTransform, t.inner.Name(), x.Rows(), x.NumCols())
	out, err := t.inner.Transform(ctx, x)
	span.End(err)
	return out, err
}

// WithMetrics wraps a stage with metric recording.
// Records call count, duration and errors for fit and transform.
func WithMetrics(s Stage, metrics *observability.Metrics) Stage {
	return &metricsStage{inner: s, metrics: metrics}
}

type metricsStage struct {
	inner   Stage
	metrics *observability.Metrics
}

func (m *metricsStage) Name() string  { return m.inner.Name() }
func (m *metricsStage) Unwrap() Stage { return m.inner }
func (m *metricsStage) Clone() Stage  { return WithMetrics(m.inner.Clone(), m.metrics) }

func (m *metricsStage) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	start := time.Now()
	err := m.inner.Fit(ctx, x, y)
	m.record(ctx, observability.OpFit, err, time.Since(start))
	return err
}

func (m *metricsStage) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	start := time.Now()
	out, err := m.inner.Transform(ctx, x)
	m.record(ctx, observability.OpTransform, err, time.Since(start))
	return out, err
}

func (m *metricsStage) record(ctx context.Context, op string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
		m.metrics.RecordError(ctx, op, m.inner.Name())
	}
	m.metrics.RecordStage(ctx, m.inner.Name(), op, status, d)
}

// WithLogging wraps a stage with execution logging.
// Logs: stage name, rows, duration and success/error status.
func WithLogging(s Stage, log *logger.Logger) Stage {
	return &loggingStage{inner: s, log: logger.OrNop(log)}
}

type loggingStage struct {
	inner Stage
	log   *logger.Logger
}

func (l *loggingStage) Name() string  { return l.inner.Name() }
func (l *loggingStage) Unwrap() Stage { return l.inner }
func (l *loggingStage) Clone() Stage  { return WithLogging(l.inner.Clone(), l.log) }

func (l *loggingStage) Fit(ctx context.Context, x *frame.Frame, y frame.Series) error {
	start := time.Now()
	err := l.inner.Fit(ctx, x, y)
	l.report(ctx, "fit", x, err, time.Since(start))
	return err
}

func (l *loggingStage) Transform(ctx context.Context, x *frame.Frame) (*frame.Frame, error) {
	start := time.Now()
	out, err := l.inner.Transform(ctx, x)
	l.report(ctx, "transform", x, err, time.Since(start))
	return out, err
}

func (l *loggingStage) report(ctx context.Context, op string, x *frame.Frame, err error, d time.Duration) {
	fields := map[string]interface{}{
		logger.FieldStage:     l.inner.Name(),
		logger.FieldOperation: op,
		logger.FieldRows:      x.Rows(),
		logger.FieldDuration:  d.Milliseconds(),
	}
	log := l.log.WithContext(ctx)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		log.Error("stage failed", fields)
		return
	}
	log.Debug("stage completed", fields)
}
