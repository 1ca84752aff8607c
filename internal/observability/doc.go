// Package observability groups the logging, metrics, SLO and tracing
// infrastructure of the linking engine.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics for reconciliation, refresh and the link map
//   - slo: Coverage, freshness and refresh failure indicators per workspace
//   - tracing: OpenTelemetry spans for reconciliation phases
package observability
