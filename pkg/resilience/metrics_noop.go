package resilience

import "time"

// NoopMetrics implements the Metrics interface with no-op
// implementations.
//
// This implementation is useful for:
// - Testing environments where metrics are not needed
// - Disabling metrics collection (e.g., development mode)
// - Benchmarking the layer without metrics overhead
//
// All methods are no-ops and have minimal performance impact.
type NoopMetrics struct{}

// NewNoopMetrics creates a new NoopMetrics instance.
func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

// RecordCall is a no-op implementation.
func (m *NoopMetrics) RecordCall(dependency, outcome string) {
	// No-op
}

// RecordCallDuration is a no-op implementation.
func (m *NoopMetrics) RecordCallDuration(dependency string, duration time.Duration) {
	// No-op
}

// RecordRetry is a no-op implementation.
func (m *NoopMetrics) RecordRetry(dependency string, attempt int) {
	// No-op
}

// RecordBreakerState is a no-op implementation.
func (m *NoopMetrics) RecordBreakerState(dependency, state string) {
	// No-op
}

// RecordCacheLookup is a no-op implementation.
func (m *NoopMetrics) RecordCacheLookup(dependency, result string) {
	// No-op
}

// RecordRateLimitWait is a no-op implementation.
func (m *NoopMetrics) RecordRateLimitWait(dependency string, wait time.Duration) {
	// No-op
}
