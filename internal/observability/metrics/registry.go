// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track status server request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Pipeline metrics track run and task outcomes
var (
	// PipelineRunsTotal counts pipeline runs by final status
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"}, // status: success, partial, failure
	)

	// PipelineRunDuration measures the wall time of a full pipeline run
	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Time taken by a full pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// PipelineTasksTotal counts task executions by kind and outcome
	PipelineTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_total",
			Help: "Total number of pipeline task executions",
		},
		[]string{"kind", "status"}, // status: success, degraded, failure
	)

	// PipelineTaskDuration measures task duration by kind
	PipelineTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_task_duration_seconds",
			Help:    "Time taken by a single pipeline task",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"kind"},
	)

	// WorkerRunsSkippedTotal counts scheduled runs skipped because the
	// previous run was still in progress
	WorkerRunsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_runs_skipped_total",
			Help: "Total number of scheduled runs skipped due to overlap",
		},
	)
)

// Generation metrics track text generation providers
var (
	// GenerationDuration measures time spent on one generation call
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Time taken by a text generation call",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"provider"},
	)

	// GenerationTokensTotal counts tokens consumed by provider and direction
	GenerationTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_tokens_total",
			Help: "Total number of generation tokens consumed",
		},
		[]string{"provider", "direction"}, // direction: input, output
	)
)

// Fetch metrics track feed and page retrieval
var (
	// FeedItemsFetchedTotal counts feed items fetched per task
	FeedItemsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_fetched_total",
			Help: "Total number of feed items fetched",
		},
		[]string{"task"},
	)

	// PageFetchAttemptsTotal counts page fetch attempts by result
	PageFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_fetch_attempts_total",
			Help: "Total number of page fetch attempts",
		},
		[]string{"result"}, // result: success, failure
	)

	// PageFetchSize measures extracted page content size in bytes
	PageFetchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "page_fetch_size_bytes",
			Help: "Extracted page content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)
)

// Alert metrics track webhook delivery
var (
	// AlertsDeliveredTotal counts webhook alerts delivered by result
	AlertsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_delivered_total",
			Help: "Total number of webhook alerts delivered",
		},
		[]string{"result"}, // result: success, failure
	)

	// AlertsDroppedTotal counts alerts dropped before delivery
	AlertsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_dropped_total",
			Help: "Total number of alerts dropped before delivery",
		},
		[]string{"reason"}, // reason: queue_full, breaker_open, rate_limited
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
