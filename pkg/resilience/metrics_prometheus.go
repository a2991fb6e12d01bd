package resilience

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// This implementation provides observability for the resilience layer
// with detailed metrics including:
// - Call outcome counters by dependency and outcome
// - Call cycle duration histograms
// - Retry counters by dependency
// - Circuit breaker state tracking
// - Cache hit/miss counters
// - Rate-limit wait duration histograms
//
// All metrics use a custom registry for better testability and isolation.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// callsTotal tracks completed call cycles.
	// Labels:
	//   - dependency: Dependency key (e.g., "anthropic")
	//   - outcome: "success", "failure", "degraded", or "short_circuit"
	callsTotal *prometheus.CounterVec

	// callDuration tracks wall-clock call cycle durations, including
	// retries and backoff sleeps.
	// Labels:
	//   - dependency: Dependency key
	//
	// Buckets span fast cache-adjacent calls through multi-retry cycles:
	// 10ms to 120s.
	callDuration *prometheus.HistogramVec

	// retriesTotal tracks scheduled retries.
	// Labels:
	//   - dependency: Dependency key
	retriesTotal *prometheus.CounterVec

	// breakerState tracks the circuit breaker state per dependency.
	// Labels:
	//   - dependency: Dependency key
	//
	// Values:
	//   - 0: Closed (normal operation)
	//   - 1: Open (calls skipped)
	//   - 2: Half-Open (testing recovery)
	breakerState *prometheus.GaugeVec

	// cacheLookupsTotal tracks response cache lookups.
	// Labels:
	//   - dependency: Dependency key
	//   - result: "hit" or "miss"
	cacheLookupsTotal *prometheus.CounterVec

	// rateLimitWait tracks preemptive quota waits.
	// Labels:
	//   - dependency: Dependency key
	rateLimitWait *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a
// custom registry.
//
// Using a custom registry (instead of the global
// prometheus.DefaultRegisterer) provides:
// - Better testability (isolated metrics per test)
// - No metric conflicts when running multiple instances
// - Explicit metric lifecycle management
//
// The registry can be passed to promhttp.HandlerFor() to expose metrics.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_calls_total",
			Help: "Completed call cycles by dependency and outcome",
		},
		[]string{"dependency", "outcome"},
	)

	callDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_call_duration_seconds",
			Help:    "Wall-clock duration of call cycles including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"dependency"},
	)

	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retries_total",
			Help: "Scheduled retries by dependency",
		},
		[]string{"dependency"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"dependency"},
	)

	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_cache_lookups_total",
			Help: "Response cache lookups by dependency and result",
		},
		[]string{"dependency", "result"},
	)

	rateLimitWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_rate_limit_wait_seconds",
			Help:    "Preemptive waits imposed by upstream rate-limit hints",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"dependency"},
	)

	// Register all metrics with the custom registry
	registry.MustRegister(
		callsTotal,
		callDuration,
		retriesTotal,
		breakerState,
		cacheLookupsTotal,
		rateLimitWait,
	)

	return &PrometheusMetrics{
		registry:          registry,
		callsTotal:        callsTotal,
		callDuration:      callDuration,
		retriesTotal:      retriesTotal,
		breakerState:      breakerState,
		cacheLookupsTotal: cacheLookupsTotal,
		rateLimitWait:     rateLimitWait,
	}
}

// Registry returns the Prometheus registry containing all resilience
// metrics.
//
// This can be used with promhttp.HandlerFor() to expose metrics:
//
//	metrics := NewPrometheusMetrics()
//	http.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCall records the outcome of one call cycle.
func (m *PrometheusMetrics) RecordCall(dependency, outcome string) {
	m.callsTotal.WithLabelValues(dependency, outcome).Inc()
}

// RecordCallDuration records the wall-clock duration of one call cycle.
func (m *PrometheusMetrics) RecordCallDuration(dependency string, duration time.Duration) {
	m.callDuration.WithLabelValues(dependency).Observe(duration.Seconds())
}

// RecordRetry records a scheduled retry.
func (m *PrometheusMetrics) RecordRetry(dependency string, attempt int) {
	m.retriesTotal.WithLabelValues(dependency).Inc()
}

// RecordBreakerState records the current circuit breaker state.
//
// The state is mapped to a numeric gauge for Prometheus alerting:
//   - 0 = closed
//   - 1 = open
//   - 2 = half-open
func (m *PrometheusMetrics) RecordBreakerState(dependency, state string) {
	var stateValue float64
	switch state {
	case "closed":
		stateValue = 0
	case "open":
		stateValue = 1
	case "half-open":
		stateValue = 2
	default:
		// Unknown state, default to closed
		stateValue = 0
	}
	m.breakerState.WithLabelValues(dependency).Set(stateValue)
}

// RecordCacheLookup records a response cache lookup.
func (m *PrometheusMetrics) RecordCacheLookup(dependency, result string) {
	m.cacheLookupsTotal.WithLabelValues(dependency, result).Inc()
}

// RecordRateLimitWait records a preemptive quota wait.
func (m *PrometheusMetrics) RecordRateLimitWait(dependency string, wait time.Duration) {
	m.rateLimitWait.WithLabelValues(dependency).Observe(wait.Seconds())
}
