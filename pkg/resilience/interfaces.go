// Package resilience provides a framework-agnostic execution layer for
// outbound calls to volatile third-party dependencies.
//
// The package wraps caller-supplied operation closures with failure
// isolation (per-dependency circuit breakers), bounded classified
// retries with exponential backoff, upstream rate-limit awareness, and
// short-term response caching. It is designed to be reusable across
// different callers (pipelines, CLIs, background jobs) and carries no
// assumptions about what the wrapped operations do.
package resilience

import (
	"time"
)

// Clock provides an abstraction for time operations to enable testing.
//
// This interface allows for dependency injection of time functions,
// making it easy to test time-dependent behavior with fake clocks.
type Clock interface {
	// Now returns the current time.
	//
	// Production implementations should return time.Now().
	// Test implementations can return fixed or controlled times.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// EventSink receives structured observability events from the layer.
//
// Sinks are fire-and-forget collaborators: Emit is called synchronously
// on the call path and implementations must return quickly and must
// never block. Implementations that perform I/O (webhooks, queues)
// should buffer internally and drop on overflow.
type EventSink interface {
	// Emit delivers a single event. It must not block.
	Emit(event Event)
}

// Metrics defines the interface for recording resilience metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// RecordCall records the outcome of one executed call cycle.
	//
	// Parameters:
	//   - dependency: Dependency key (e.g., "anthropic", "feed:example.com")
	//   - outcome: One of "success", "failure", "degraded", "short_circuit"
	RecordCall(dependency, outcome string)

	// RecordCallDuration records the wall-clock duration of one call cycle,
	// including retries and backoff sleeps.
	//
	// Parameters:
	//   - dependency: Dependency key
	//   - duration: Total time spent in the call cycle
	RecordCallDuration(dependency string, duration time.Duration)

	// RecordRetry records that a retry was scheduled after a failed attempt.
	//
	// Parameters:
	//   - dependency: Dependency key
	//   - attempt: The attempt number that failed (1-based)
	RecordRetry(dependency string, attempt int)

	// RecordBreakerState records the current state of a dependency's
	// circuit breaker.
	//
	// Parameters:
	//   - dependency: Dependency key
	//   - state: Circuit state (e.g., "closed", "open", "half-open")
	RecordBreakerState(dependency, state string)

	// RecordCacheLookup records a response cache lookup.
	//
	// Parameters:
	//   - dependency: Dependency key
	//   - result: "hit" or "miss"
	RecordCacheLookup(dependency, result string)

	// RecordRateLimitWait records a preemptive wait imposed by upstream
	// rate-limit hints.
	//
	// Parameters:
	//   - dependency: Dependency key
	//   - wait: Duration the caller was suspended
	RecordRateLimitWait(dependency string, wait time.Duration)
}
