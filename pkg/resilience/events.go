package resilience

import (
	"log/slog"
	"time"
)

// EventType identifies the kind of observability event.
type EventType string

const (
	// EventBreakerTransition is emitted on every circuit breaker state
	// change, carrying FromState and ToState.
	EventBreakerTransition EventType = "breaker_transition"

	// EventRetry is emitted each time a retry is scheduled, carrying the
	// failed attempt number and the chosen delay.
	EventRetry EventType = "retry"

	// EventCacheHit is emitted when a call is satisfied from the cache.
	EventCacheHit EventType = "cache_hit"

	// EventCacheMiss is emitted when a cache lookup finds nothing usable.
	EventCacheMiss EventType = "cache_miss"

	// EventRateLimitWait is emitted before suspending on an upstream
	// rate-limit hint, carrying the wait duration.
	EventRateLimitWait EventType = "rate_limit_wait"

	// EventFallback is emitted when a degraded fallback result replaces
	// a failed call.
	EventFallback EventType = "fallback"

	// EventCallSuccess is emitted when a call cycle returns a live value.
	EventCallSuccess EventType = "call_success"

	// EventCallFailure is emitted when a call cycle surfaces an error.
	EventCallFailure EventType = "call_failure"
)

// Event is one structured observability record. Fields beyond Type,
// Dependency, and At are populated only where they apply.
type Event struct {
	Type       EventType
	Dependency string
	At         time.Time

	// Attempt is the 1-based attempt number for retry events and the
	// total attempts used for call outcome events.
	Attempt int

	// Delay is the scheduled backoff for retry events and the suspend
	// duration for rate-limit wait events.
	Delay time.Duration

	// FromState and ToState describe breaker transitions.
	FromState string
	ToState   string

	// Err carries the triggering error's message, if any.
	Err string
}

// NoopSink discards all events.
type NoopSink struct{}

// Emit does nothing.
func (NoopSink) Emit(Event) {}

// LogSink writes events to a slog logger. Breaker transitions,
// fallbacks, and call failures log at WARN; everything else at DEBUG.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit logs the event with structured fields.
func (s *LogSink) Emit(event Event) {
	attrs := []any{
		slog.String("event", string(event.Type)),
		slog.String("dependency", event.Dependency),
	}
	if event.Attempt > 0 {
		attrs = append(attrs, slog.Int("attempt", event.Attempt))
	}
	if event.Delay > 0 {
		attrs = append(attrs, slog.Duration("delay", event.Delay))
	}
	if event.FromState != "" {
		attrs = append(attrs,
			slog.String("previous_state", event.FromState),
			slog.String("new_state", event.ToState))
	}
	if event.Err != "" {
		attrs = append(attrs, slog.String("error", event.Err))
	}

	switch event.Type {
	case EventBreakerTransition, EventFallback, EventCallFailure:
		s.logger.Warn("resilience event", attrs...)
	default:
		s.logger.Debug("resilience event", attrs...)
	}
}

// MultiSink fans one event out to several sinks in order.
type MultiSink []EventSink

// Emit delivers the event to every sink.
func (s MultiSink) Emit(event Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(event)
		}
	}
}
