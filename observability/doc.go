// Package observability provides OpenTelemetry tracing and metrics for stage
// execution.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("mlkit")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	traced := stage.WithTracing(pipeline, "mlkit")
//
// Stage wrappers open "{prefix}.{op}.{stage}" spans with StartStageSpan and
// cross-validation opens one StartFoldSpan per fold; both close with
// Span.End, which marks the span failed when given an error.
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("mlkit"))
//	metered := stage.WithMetrics(pipeline, metrics)
package observability
