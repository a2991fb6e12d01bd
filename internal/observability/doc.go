// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Request tracing across service boundaries
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - SLO tracking for scheduled pipeline runs
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//   - slo: Service level indicator gauges for pipeline runs
//   - tracing: OpenTelemetry tracing integration
//
// Example usage:
//
//	import (
//	    "callguard/internal/observability/logging"
//	    "callguard/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("worker started")
//
//	    metrics.RecordFeedItemsFetched("go-blog", 10)
//	}
package observability
