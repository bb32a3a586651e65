// Package observability provides OpenTelemetry tracing and metrics for
// pipeline runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, &cfg.Tracing, log)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanTaskExecute)
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("runemaster"))
//	metrics.RecordTask(ctx, "CSVQueryTask", "transform", "ok", duration)
//
// With neither enabled the global no-op providers are used, so spans and
// instruments can always be created.
package observability
