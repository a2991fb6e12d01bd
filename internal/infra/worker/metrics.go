package worker

import (
	"time"

	"callguard/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the worker component.
// It embeds the standard ConfigMetrics for configuration monitoring and
// adds scheduler-level metrics. Pipeline run counters and durations are
// owned by the pipeline service; the worker only tracks schedule state.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Scheduler metrics:
//   - worker_last_success_timestamp: Unix timestamp of last successful run
//   - worker_next_run_timestamp: Unix timestamp of the next scheduled run
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
//	// Record configuration load
//	metrics.RecordLoadTimestamp()
//
//	// Record schedule progress
//	metrics.RecordLastSuccess()
//	metrics.RecordNextRun(entry.Next)
type WorkerMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// LastSuccessTimestamp records the Unix timestamp of the last successful run.
	// Type: Gauge
	// Labels: none
	// Usage: Set to current time when a run completes successfully
	LastSuccessTimestamp prometheus.Gauge

	// NextRunTimestamp records the Unix timestamp of the next scheduled run.
	// Type: Gauge
	// Labels: none
	// Usage: Set after scheduling and after each run completes
	NextRunTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics initialized.
// Metrics are created but not registered with Prometheus. Call MustRegister() to register.
//
// Returns:
//   - *WorkerMetrics: Initialized metrics ready for registration
//
// Example:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()  // Register with Prometheus
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		LastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_last_success_timestamp",
			Help: "Unix timestamp of the last successful pipeline run",
		}),

		NextRunTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_next_run_timestamp",
			Help: "Unix timestamp of the next scheduled pipeline run",
		}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
//
// This method exists to maintain consistency with the expected metrics initialization pattern:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
// Even though registration happens automatically, this explicit call makes the
// initialization intent clear and maintains compatibility with future changes.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordLastSuccess records the current time as the last successful run completion.
//
// Example:
//
//	if err := runPipeline(); err == nil {
//	    metrics.RecordLastSuccess()
//	}
func (m *WorkerMetrics) RecordLastSuccess() {
	m.LastSuccessTimestamp.SetToCurrentTime()
}

// RecordNextRun records the timestamp of the next scheduled run.
// Zero times are ignored so a stopped scheduler does not report a stale
// future run.
//
// Parameters:
//   - t: Time of the next scheduled run
func (m *WorkerMetrics) RecordNextRun(t time.Time) {
	if t.IsZero() {
		return
	}
	m.NextRunTimestamp.Set(float64(t.Unix()))
}
