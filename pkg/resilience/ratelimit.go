package resilience

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RateLimitInfo is a snapshot of upstream quota state for one
// dependency key, built from response metadata.
//
// RequestsRemaining and TokensRemaining are pointers so that providers
// which report only one counter (or none) can leave the others absent;
// an absent counter never triggers a wait.
type RateLimitInfo struct {
	Key               string
	RequestsRemaining *int
	TokensRemaining   *int
	ResetTime         time.Time
	RetryAfter        time.Duration
	UpdatedAt         time.Time
}

// exhausted reports whether any present counter is at or below zero.
func (i RateLimitInfo) exhausted() bool {
	if i.RequestsRemaining != nil && *i.RequestsRemaining <= 0 {
		return true
	}
	if i.TokensRemaining != nil && *i.TokensRemaining <= 0 {
		return true
	}
	return false
}

// TrackerConfig holds configuration for the rate limit tracker.
type TrackerConfig struct {
	// Clock provides time abstraction for testing.
	// Default: SystemClock
	Clock Clock

	// Metrics for recording waits.
	// Default: NoopMetrics
	Metrics Metrics

	// Events receives wait events.
	// Default: NoopSink
	Events EventSink
}

// RateLimitTracker records quota/reset hints from upstream responses
// and suspends callers that would exceed an exhausted quota.
//
// Entries are not proactively swept; staleness is resolved lazily on
// the next check. All methods are safe for concurrent use.
type RateLimitTracker struct {
	config TrackerConfig

	mu      sync.Mutex
	entries map[string]RateLimitInfo
}

// NewRateLimitTracker creates a tracker, defaulting nil collaborators.
func NewRateLimitTracker(config TrackerConfig) *RateLimitTracker {
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Events == nil {
		config.Events = NoopSink{}
	}
	return &RateLimitTracker{
		config:  config,
		entries: make(map[string]RateLimitInfo),
	}
}

// Update stores or overwrites the entry for the key from upstream
// response metadata. The stored ResetTime is non-decreasing for a key
// until the entry is cleared: an update carrying an older reset keeps
// the later one.
func (t *RateLimitTracker) Update(key string, info RateLimitInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[key]; ok && info.ResetTime.Before(existing.ResetTime) {
		info.ResetTime = existing.ResetTime
	}
	info.Key = key
	info.UpdatedAt = t.config.Clock.Now()
	t.entries[key] = info
}

// WaitIfNeeded suspends the caller until the key's quota resets.
//
// The caller waits only when an entry exists, its ResetTime is still in
// the future, and a present counter is at or below zero; the entry is
// cleared once the wait completes. An entry whose ResetTime has already
// passed is cleared immediately without waiting. Healthy quotas leave
// the entry in place. Cancellation via ctx aborts the wait and returns
// the context's error.
func (t *RateLimitTracker) WaitIfNeeded(ctx context.Context, key string) error {
	wait, resetTime, needed := t.pendingWait(key)
	if !needed {
		return nil
	}

	t.config.Metrics.RecordRateLimitWait(key, wait)
	t.config.Events.Emit(Event{
		Type:       EventRateLimitWait,
		Dependency: key,
		At:         t.config.Clock.Now(),
		Delay:      wait,
	})
	slog.Info("rate limit quota exhausted, waiting for reset",
		slog.String("dependency", key),
		slog.Duration("wait", wait),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.clearIfUnchanged(key, resetTime)
	return nil
}

// pendingWait computes the wait the key currently requires. It clears
// entries whose reset has already passed and returns needed=false for
// absent entries and healthy quotas.
func (t *RateLimitTracker) pendingWait(key string) (wait time.Duration, resetTime time.Time, needed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return 0, time.Time{}, false
	}

	now := t.config.Clock.Now()
	if !entry.ResetTime.After(now) {
		delete(t.entries, key)
		return 0, time.Time{}, false
	}
	if !entry.exhausted() {
		return 0, time.Time{}, false
	}
	return entry.ResetTime.Sub(now), entry.ResetTime, true
}

// clearIfUnchanged removes the entry after a completed wait unless a
// fresher update (with a later reset) replaced it during the sleep.
func (t *RateLimitTracker) clearIfUnchanged(key string, resetTime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[key]; ok && !entry.ResetTime.After(resetTime) {
		delete(t.entries, key)
	}
}

// Snapshot returns a copy of every tracked entry, sorted by key.
//
// This is useful for status endpoints and debugging.
func (t *RateLimitTracker) Snapshot() []RateLimitInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]RateLimitInfo, 0, len(t.entries))
	for _, entry := range t.entries {
		snapshot = append(snapshot, entry)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key < snapshot[j].Key })
	return snapshot
}

// Len returns the number of tracked keys.
func (t *RateLimitTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
