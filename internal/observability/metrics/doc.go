// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes the worker-level application metrics:
//   - HTTP request metrics for the status server (duration, count)
//   - Pipeline metrics (runs, tasks, generation tokens)
//   - Feed and page fetch metrics
//   - Alert delivery metrics
//
// All metrics here are automatically registered with the Prometheus default
// registry and exposed via the /metrics endpoint. The per-dependency
// resilience metrics live on their own injected registry (see
// pkg/resilience.PrometheusMetrics) and are served next to these.
//
// Example usage:
//
//	import "callguard/internal/observability/metrics"
//
//	func runTask(kind string) {
//	    start := time.Now()
//	    // ... execute the task ...
//
//	    metrics.RecordTask(kind, "success", time.Since(start))
//	}
package metrics
