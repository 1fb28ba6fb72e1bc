// Package telemetry groups the edge's observability concerns:
//
//   - logging: structured slog output with request-scoped context fields
//   - metrics: Prometheus collector and the /metrics scrape handler
//   - tracing: optional OpenTelemetry span export over OTLP
//
// Domain packages depend only on the narrow Metrics interfaces they
// declare; the metrics.Collector satisfies all of them and is wired in
// at process startup.
package telemetry
