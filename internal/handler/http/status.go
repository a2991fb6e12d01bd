package http

import (
	"errors"
	"net/http"
	"time"

	"callguard/internal/handler/http/respond"
	"callguard/pkg/resilience"
)

// ResilienceStatus represents the JSON response for the resilience
// snapshot endpoint. It exposes the live protection state of every
// dependency the executor has touched since startup.
type ResilienceStatus struct {
	Timestamp  string            `json:"timestamp"` // ISO 8601 format
	Breakers   []BreakerStatus   `json:"breakers"`
	RateLimits []RateLimitStatus `json:"rate_limits"`
	Cache      CacheStatus       `json:"cache"`
}

// BreakerStatus describes one circuit breaker entry.
type BreakerStatus struct {
	Dependency     string `json:"dependency"`
	State          string `json:"state"` // "closed", "open" or "half-open"
	FailureCount   int    `json:"failure_count"`
	LastFailure    string `json:"last_failure,omitempty"`
	LastTransition string `json:"last_transition,omitempty"`
}

// RateLimitStatus describes one tracked upstream quota entry.
// Remaining counters are pointers because providers that report only
// one counter leave the others absent.
type RateLimitStatus struct {
	Dependency        string `json:"dependency"`
	RequestsRemaining *int   `json:"requests_remaining,omitempty"`
	TokensRemaining   *int   `json:"tokens_remaining,omitempty"`
	ResetTime         string `json:"reset_time,omitempty"`
	RetryAfter        string `json:"retry_after,omitempty"`
	UpdatedAt         string `json:"updated_at"`
}

// CacheStatus describes the response cache.
type CacheStatus struct {
	Entries int `json:"entries"`
}

// StatusHandler serves the resilience snapshot for the shared registry.
// The snapshot is read-only; breaker and rate-limit state can only be
// changed by the executor itself.
type StatusHandler struct {
	Registry *resilience.Registry
}

// ServeHTTP returns the current breaker states, rate-limit entries and
// cache size as JSON. Only GET is supported.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.Error(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	breakers := h.Registry.Breakers().Snapshot()
	limits := h.Registry.Limits().Snapshot()

	status := ResilienceStatus{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Breakers:   make([]BreakerStatus, 0, len(breakers)),
		RateLimits: make([]RateLimitStatus, 0, len(limits)),
		Cache:      CacheStatus{Entries: h.Registry.Cache().Len()},
	}

	for _, stats := range breakers {
		entry := BreakerStatus{
			Dependency:   stats.Key,
			State:        stats.State.String(),
			FailureCount: stats.FailureCount,
		}
		if !stats.LastFailureTime.IsZero() {
			entry.LastFailure = stats.LastFailureTime.UTC().Format(time.RFC3339)
		}
		if !stats.LastStateChange.IsZero() {
			entry.LastTransition = stats.LastStateChange.UTC().Format(time.RFC3339)
		}
		status.Breakers = append(status.Breakers, entry)
	}

	for _, info := range limits {
		entry := RateLimitStatus{
			Dependency:        info.Key,
			RequestsRemaining: info.RequestsRemaining,
			TokensRemaining:   info.TokensRemaining,
			UpdatedAt:         info.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if !info.ResetTime.IsZero() {
			entry.ResetTime = info.ResetTime.UTC().Format(time.RFC3339)
		}
		if info.RetryAfter > 0 {
			entry.RetryAfter = info.RetryAfter.String()
		}
		status.RateLimits = append(status.RateLimits, entry)
	}

	respond.JSON(w, http.StatusOK, status)
}
