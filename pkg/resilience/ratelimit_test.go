package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func TestNewRateLimitTracker(t *testing.T) {
	tracker := NewRateLimitTracker(TrackerConfig{})

	if tracker.config.Clock == nil {
		t.Error("Clock should not be nil")
	}
	if tracker.config.Metrics == nil {
		t.Error("Metrics should not be nil")
	}
	if tracker.config.Events == nil {
		t.Error("Events should not be nil")
	}
	if tracker.Len() != 0 {
		t.Errorf("Len = %d, want 0", tracker.Len())
	}
}

func TestRateLimitTracker_UpdateStoresEntry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})

	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(42),
		TokensRemaining:   intPtr(9000),
		ResetTime:         now.Add(time.Minute),
	})

	snapshot := tracker.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("Snapshot has %d entries, want 1", len(snapshot))
	}

	entry := snapshot[0]
	if entry.Key != "anthropic" {
		t.Errorf("Key = %q, want %q", entry.Key, "anthropic")
	}
	if entry.RequestsRemaining == nil || *entry.RequestsRemaining != 42 {
		t.Errorf("RequestsRemaining = %v, want 42", entry.RequestsRemaining)
	}
	if entry.TokensRemaining == nil || *entry.TokensRemaining != 9000 {
		t.Errorf("TokensRemaining = %v, want 9000", entry.TokensRemaining)
	}
	if !entry.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", entry.UpdatedAt, now)
	}
}

func TestRateLimitTracker_ResetTimeNonDecreasing(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})

	later := now.Add(10 * time.Second)
	tracker.Update("anthropic", RateLimitInfo{ResetTime: later})

	// An update carrying an earlier reset keeps the later one
	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(5),
		ResetTime:         now.Add(5 * time.Second),
	})

	entry := tracker.Snapshot()[0]
	if !entry.ResetTime.Equal(later) {
		t.Errorf("ResetTime = %v, want %v (stale reset must not rewind)", entry.ResetTime, later)
	}
	if entry.RequestsRemaining == nil || *entry.RequestsRemaining != 5 {
		t.Errorf("RequestsRemaining = %v, want 5 (counters still overwrite)", entry.RequestsRemaining)
	}

	// A genuinely newer reset advances it
	latest := now.Add(20 * time.Second)
	tracker.Update("anthropic", RateLimitInfo{ResetTime: latest})
	if got := tracker.Snapshot()[0].ResetTime; !got.Equal(latest) {
		t.Errorf("ResetTime = %v, want %v", got, latest)
	}
}

func TestRateLimitTracker_PendingWait(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		info     RateLimitInfo
		wantWait time.Duration
		needed   bool
	}{
		{
			name: "requests exhausted",
			info: RateLimitInfo{
				RequestsRemaining: intPtr(0),
				ResetTime:         now.Add(5 * time.Second),
			},
			wantWait: 5 * time.Second,
			needed:   true,
		},
		{
			name: "tokens exhausted",
			info: RateLimitInfo{
				TokensRemaining: intPtr(0),
				ResetTime:       now.Add(2 * time.Second),
			},
			wantWait: 2 * time.Second,
			needed:   true,
		},
		{
			name: "one counter exhausted among two",
			info: RateLimitInfo{
				RequestsRemaining: intPtr(0),
				TokensRemaining:   intPtr(5000),
				ResetTime:         now.Add(3 * time.Second),
			},
			wantWait: 3 * time.Second,
			needed:   true,
		},
		{
			name: "healthy quota",
			info: RateLimitInfo{
				RequestsRemaining: intPtr(10),
				ResetTime:         now.Add(5 * time.Second),
			},
			needed: false,
		},
		{
			name: "no counters reported",
			info: RateLimitInfo{
				ResetTime: now.Add(5 * time.Second),
			},
			needed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewMockClock(now)
			tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})
			tracker.Update("anthropic", tt.info)

			wait, _, needed := tracker.pendingWait("anthropic")
			if needed != tt.needed {
				t.Fatalf("needed = %v, want %v", needed, tt.needed)
			}
			if needed && wait != tt.wantWait {
				t.Errorf("wait = %v, want %v", wait, tt.wantWait)
			}
		})
	}
}

func TestRateLimitTracker_AbsentKeyNeedsNoWait(t *testing.T) {
	tracker := NewRateLimitTracker(TrackerConfig{Clock: NewMockClock(time.Now())})

	if err := tracker.WaitIfNeeded(context.Background(), "nonexistent"); err != nil {
		t.Errorf("WaitIfNeeded on unknown key = %v, want nil", err)
	}
}

func TestRateLimitTracker_ExpiredEntryClearedOnCheck(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})

	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(0),
		ResetTime:         now.Add(time.Second),
	})

	// The reset passed while nobody was looking
	clock.Advance(2 * time.Second)

	if err := tracker.WaitIfNeeded(context.Background(), "anthropic"); err != nil {
		t.Errorf("WaitIfNeeded = %v, want nil", err)
	}
	if tracker.Len() != 0 {
		t.Errorf("Len = %d, want 0 (expired entry should be cleared)", tracker.Len())
	}
}

func TestRateLimitTracker_HealthyQuotaLeavesEntry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})

	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(10),
		ResetTime:         now.Add(time.Minute),
	})

	if err := tracker.WaitIfNeeded(context.Background(), "anthropic"); err != nil {
		t.Errorf("WaitIfNeeded = %v, want nil", err)
	}
	if tracker.Len() != 1 {
		t.Errorf("Len = %d, want 1 (healthy entry stays for later refreshes)", tracker.Len())
	}
}

func TestRateLimitTracker_WaitIfNeeded_Waits(t *testing.T) {
	sink := &captureSink{}
	tracker := NewRateLimitTracker(TrackerConfig{Events: sink})

	wait := 60 * time.Millisecond
	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(0),
		ResetTime:         time.Now().Add(wait),
	})

	start := time.Now()
	if err := tracker.WaitIfNeeded(context.Background(), "anthropic"); err != nil {
		t.Fatalf("WaitIfNeeded = %v, want nil", err)
	}
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, should have waited about %v", elapsed, wait)
	}
	if tracker.Len() != 0 {
		t.Errorf("Len = %d, want 0 (entry cleared after the wait)", tracker.Len())
	}

	events := sink.byType(EventRateLimitWait)
	if len(events) != 1 {
		t.Fatalf("captured %d wait events, want 1", len(events))
	}
	if events[0].Delay <= 0 || events[0].Delay > wait {
		t.Errorf("event Delay = %v, want within (0, %v]", events[0].Delay, wait)
	}
}

func TestRateLimitTracker_WaitIfNeeded_Cancellation(t *testing.T) {
	tracker := NewRateLimitTracker(TrackerConfig{})

	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(0),
		ResetTime:         time.Now().Add(5 * time.Second),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := tracker.WaitIfNeeded(ctx, "anthropic")
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitIfNeeded = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > time.Second {
		t.Errorf("cancellation took %v, should abort promptly", elapsed)
	}
	if tracker.Len() != 1 {
		t.Errorf("Len = %d, want 1 (aborted wait must not clear the entry)", tracker.Len())
	}
}

func TestRateLimitTracker_FreshUpdateSurvivesCompletedWait(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})

	staleReset := now.Add(time.Second)
	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(0),
		ResetTime:         staleReset,
	})

	// A fresher limit arrived while the waiter slept
	tracker.Update("anthropic", RateLimitInfo{
		RequestsRemaining: intPtr(0),
		ResetTime:         now.Add(10 * time.Second),
	})

	tracker.clearIfUnchanged("anthropic", staleReset)
	if tracker.Len() != 1 {
		t.Errorf("Len = %d, want 1 (a fresher entry must survive the waiter's clear)", tracker.Len())
	}

	// Without an intervening update the clear goes through
	tracker.clearIfUnchanged("anthropic", now.Add(10*time.Second))
	if tracker.Len() != 0 {
		t.Errorf("Len = %d, want 0", tracker.Len())
	}
}

func TestRateLimitTracker_Snapshot(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(now)
	tracker := NewRateLimitTracker(TrackerConfig{Clock: clock})

	tracker.Update("openai", RateLimitInfo{ResetTime: now.Add(time.Minute)})
	tracker.Update("anthropic", RateLimitInfo{ResetTime: now.Add(time.Minute)})

	snapshot := tracker.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("Snapshot has %d entries, want 2", len(snapshot))
	}
	if snapshot[0].Key != "anthropic" || snapshot[1].Key != "openai" {
		t.Errorf("Snapshot keys = [%s, %s], want [anthropic, openai]", snapshot[0].Key, snapshot[1].Key)
	}
}
