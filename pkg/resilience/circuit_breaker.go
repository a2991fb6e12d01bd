package resilience

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// CircuitState represents the state of one dependency's circuit.
type CircuitState int

const (
	// StateClosed indicates the circuit is closed and calls are allowed.
	// This is the normal operating state.
	StateClosed CircuitState = iota

	// StateOpen indicates the circuit is open due to accumulated
	// failures. Calls are skipped until the open timeout elapses.
	StateOpen

	// StateHalfOpen indicates the circuit is testing recovery. Exactly
	// one trial call is permitted; its outcome closes or reopens the
	// circuit.
	StateHalfOpen
)

// String returns a string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds configuration for the keyed circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of failures recorded since the last
	// reset required to open a circuit.
	// Default: 5
	FailureThreshold int

	// OpenTimeout is the cooldown, measured from the last recorded
	// failure, before an open circuit permits a half-open trial.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// Clock provides time abstraction for testing.
	// Default: SystemClock
	Clock Clock

	// Metrics for recording state changes.
	// Default: NoopMetrics
	Metrics Metrics

	// Events receives transition events.
	// Default: NoopSink
	Events EventSink
}

// breakerEntry is the per-key state. One instance exists per dependency
// key, created lazily on first failure.
type breakerEntry struct {
	state           CircuitState
	failureCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	trialInFlight   bool
}

// CircuitBreaker is a keyed failure-counting state machine.
//
// Each dependency key owns an independent circuit with three states:
//
//   - Closed (normal): calls proceed, failures are counted.
//   - Open (failing): after the threshold is reached, IsOpen reports
//     true and the executor skips calls until OpenTimeout has elapsed
//     since the last recorded failure.
//   - Half-Open (testing): one trial call is permitted; success closes
//     the circuit, failure reopens it with a refreshed timestamp.
//
// All methods are synchronous, O(1), and perform no I/O. The registry
// map is guarded by a single mutex; counts racing near the threshold
// may overshoot it by a call or two, which is acceptable here.
type CircuitBreaker struct {
	config BreakerConfig

	mu      sync.RWMutex
	entries map[string]*breakerEntry
}

// BreakerStats is a point-in-time snapshot of one circuit.
type BreakerStats struct {
	Key             string
	State           CircuitState
	FailureCount    int
	LastFailureTime time.Time
	LastStateChange time.Time
}

// NewCircuitBreaker creates a keyed circuit breaker.
//
// If config.FailureThreshold is 0, it defaults to 5.
// If config.OpenTimeout is 0, it defaults to 60 seconds.
// If config.Clock is nil, it defaults to SystemClock.
// If config.Metrics is nil, it defaults to NoopMetrics.
// If config.Events is nil, it defaults to NoopSink.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 60 * time.Second
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Events == nil {
		config.Events = NoopSink{}
	}

	return &CircuitBreaker{
		config:  config,
		entries: make(map[string]*breakerEntry),
	}
}

// RecordFailure records a failed call cycle against the key.
//
// The failure count is incremented and the last-failure timestamp is
// refreshed on every call, including while the circuit is already open.
// A closed circuit opens once the count reaches the threshold; a
// half-open circuit reopens immediately because its trial failed.
func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	entry, ok := cb.entries[key]
	if !ok {
		entry = &breakerEntry{state: StateClosed}
		cb.entries[key] = entry
	}

	now := cb.config.Clock.Now()
	entry.failureCount++
	entry.lastFailureTime = now

	switch entry.state {
	case StateClosed:
		if entry.failureCount >= cb.config.FailureThreshold {
			cb.transitionLocked(key, entry, StateOpen, now)
		}
	case StateHalfOpen:
		entry.trialInFlight = false
		cb.transitionLocked(key, entry, StateOpen, now)
	case StateOpen:
		// Stays open; the refreshed timestamp extends the cooldown.
	}
}

// Reset closes the circuit for the key and zeroes its failure count.
// Called on any successful call cycle, including a half-open trial
// success. Resetting an unknown key is a no-op.
func (cb *CircuitBreaker) Reset(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	entry, ok := cb.entries[key]
	if !ok {
		return
	}

	entry.failureCount = 0
	entry.lastFailureTime = time.Time{}
	entry.trialInFlight = false
	if entry.state != StateClosed {
		cb.transitionLocked(key, entry, StateClosed, cb.config.Clock.Now())
	}
}

// IsOpen reports whether calls for the key should be skipped.
//
// An open circuit whose cooldown has elapsed transitions to half-open
// and returns false, permitting exactly one trial call; while that
// trial is outstanding, further IsOpen calls return true. If a trial's
// outcome never arrives (the caller was cancelled), another trial is
// permitted once OpenTimeout elapses again. Unknown keys are closed.
func (cb *CircuitBreaker) IsOpen(key string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	entry, ok := cb.entries[key]
	if !ok {
		return false
	}

	now := cb.config.Clock.Now()
	switch entry.state {
	case StateOpen:
		if now.Sub(entry.lastFailureTime) >= cb.config.OpenTimeout {
			cb.transitionLocked(key, entry, StateHalfOpen, now)
			entry.trialInFlight = true
			return false
		}
		return true
	case StateHalfOpen:
		if !entry.trialInFlight {
			entry.trialInFlight = true
			return false
		}
		if now.Sub(entry.lastStateChange) >= cb.config.OpenTimeout {
			entry.lastStateChange = now
			return false
		}
		return true
	default:
		return false
	}
}

// State returns the current state for the key without side effects.
// Unknown keys report StateClosed.
func (cb *CircuitBreaker) State(key string) CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if entry, ok := cb.entries[key]; ok {
		return entry.state
	}
	return StateClosed
}

// Stats returns a snapshot of one circuit. Unknown keys report a
// zero-valued closed circuit.
func (cb *CircuitBreaker) Stats(key string) BreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	stats := BreakerStats{Key: key, State: StateClosed}
	if entry, ok := cb.entries[key]; ok {
		stats.State = entry.state
		stats.FailureCount = entry.failureCount
		stats.LastFailureTime = entry.lastFailureTime
		stats.LastStateChange = entry.lastStateChange
	}
	return stats
}

// Snapshot returns stats for every known key, sorted by key.
//
// This is useful for status endpoints and debugging.
func (cb *CircuitBreaker) Snapshot() []BreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	snapshot := make([]BreakerStats, 0, len(cb.entries))
	for key, entry := range cb.entries {
		snapshot = append(snapshot, BreakerStats{
			Key:             key,
			State:           entry.state,
			FailureCount:    entry.failureCount,
			LastFailureTime: entry.lastFailureTime,
			LastStateChange: entry.lastStateChange,
		})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key < snapshot[j].Key })
	return snapshot
}

// transitionLocked moves the entry to a new state, recording metrics,
// emitting the transition event, and logging. Callers hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(key string, entry *breakerEntry, to CircuitState, now time.Time) {
	from := entry.state
	entry.state = to
	entry.lastStateChange = now

	cb.config.Metrics.RecordBreakerState(key, to.String())
	cb.config.Events.Emit(Event{
		Type:       EventBreakerTransition,
		Dependency: key,
		At:         now,
		FromState:  from.String(),
		ToState:    to.String(),
	})

	slog.Warn("circuit breaker state changed",
		slog.String("dependency", key),
		slog.String("previous_state", from.String()),
		slog.String("new_state", to.String()),
		slog.Int("failure_count", entry.failureCount),
		slog.Duration("open_timeout", cb.config.OpenTimeout),
	)
}
