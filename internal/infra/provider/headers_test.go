package provider

import (
	"net/http"
	"strconv"
	"testing"
	"time"
)

func TestRateLimitFromHeaders_AnthropicFamily(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(45 * time.Second)

	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-remaining", "99")
	h.Set("anthropic-ratelimit-requests-reset", reset.Format(time.RFC3339))
	h.Set("anthropic-ratelimit-tokens-remaining", "7500")

	info, ok := rateLimitFromHeaders("anthropic", h, now)
	if !ok {
		t.Fatal("rateLimitFromHeaders() ok = false, want true")
	}

	if info.Key != "anthropic" {
		t.Errorf("Key = %q, want %q", info.Key, "anthropic")
	}
	if info.RequestsRemaining == nil || *info.RequestsRemaining != 99 {
		t.Errorf("RequestsRemaining = %v, want 99", info.RequestsRemaining)
	}
	if info.TokensRemaining == nil || *info.TokensRemaining != 7500 {
		t.Errorf("TokensRemaining = %v, want 7500", info.TokensRemaining)
	}
	if !info.ResetTime.Equal(reset) {
		t.Errorf("ResetTime = %v, want %v", info.ResetTime, reset)
	}
	if !info.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", info.UpdatedAt, now)
	}
}

func TestRateLimitFromHeaders_LaterResetWins(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	requestsReset := now.Add(30 * time.Second)
	tokensReset := now.Add(90 * time.Second)

	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-reset", requestsReset.Format(time.RFC3339))
	h.Set("anthropic-ratelimit-tokens-reset", tokensReset.Format(time.RFC3339))

	info, ok := rateLimitFromHeaders("anthropic", h, now)
	if !ok {
		t.Fatal("rateLimitFromHeaders() ok = false, want true")
	}
	if !info.ResetTime.Equal(tokensReset) {
		t.Errorf("ResetTime = %v, want later reset %v", info.ResetTime, tokensReset)
	}
}

func TestRateLimitFromHeaders_GenericFamily(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", "30")

	info, ok := rateLimitFromHeaders("feed:example.com", h, now)
	if !ok {
		t.Fatal("rateLimitFromHeaders() ok = false, want true")
	}
	if info.RequestsRemaining == nil || *info.RequestsRemaining != 0 {
		t.Errorf("RequestsRemaining = %v, want 0", info.RequestsRemaining)
	}
	want := now.Add(30 * time.Second)
	if !info.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", info.ResetTime, want)
	}
}

func TestRateLimitFromHeaders_GenericResetEpoch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(2 * time.Minute)

	h := http.Header{}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

	info, ok := rateLimitFromHeaders("feed:example.com", h, now)
	if !ok {
		t.Fatal("rateLimitFromHeaders() ok = false, want true")
	}
	if !info.ResetTime.Equal(time.Unix(reset.Unix(), 0)) {
		t.Errorf("ResetTime = %v, want %v", info.ResetTime, reset)
	}
}

func TestRateLimitFromHeaders_RetryAfterSeconds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	h := http.Header{}
	h.Set("Retry-After", "120")

	info, ok := rateLimitFromHeaders("openai", h, now)
	if !ok {
		t.Fatal("rateLimitFromHeaders() ok = false, want true")
	}
	if info.RetryAfter != 120*time.Second {
		t.Errorf("RetryAfter = %v, want 120s", info.RetryAfter)
	}
	// Retry-After doubles as the reset when no reset header exists.
	want := now.Add(120 * time.Second)
	if !info.ResetTime.Equal(want) {
		t.Errorf("ResetTime = %v, want %v", info.ResetTime, want)
	}
}

func TestRateLimitFromHeaders_RetryAfterHTTPDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	retryAt := now.Add(90 * time.Second)

	h := http.Header{}
	h.Set("Retry-After", retryAt.UTC().Format(http.TimeFormat))

	info, ok := rateLimitFromHeaders("openai", h, now)
	if !ok {
		t.Fatal("rateLimitFromHeaders() ok = false, want true")
	}
	if info.RetryAfter != 90*time.Second {
		t.Errorf("RetryAfter = %v, want 90s", info.RetryAfter)
	}
}

func TestRateLimitFromHeaders_NoHeaders(t *testing.T) {
	_, ok := rateLimitFromHeaders("anthropic", http.Header{}, time.Now())
	if ok {
		t.Error("rateLimitFromHeaders() ok = true for empty headers, want false")
	}
}

func TestRateLimitFromHeaders_InvalidValuesIgnored(t *testing.T) {
	h := http.Header{}
	h.Set("anthropic-ratelimit-requests-remaining", "abc")
	h.Set("anthropic-ratelimit-requests-reset", "not-a-time")
	h.Set("Retry-After", "-5")

	_, ok := rateLimitFromHeaders("anthropic", h, time.Now())
	if ok {
		t.Error("rateLimitFromHeaders() ok = true for unparseable headers, want false")
	}
}

func TestRetryAfterHeader(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"seconds", "30", 30 * time.Second, true},
		{"http date", now.Add(time.Minute).UTC().Format(http.TimeFormat), time.Minute, true},
		{"zero", "0", 0, false},
		{"negative", "-1", 0, false},
		{"past date", now.Add(-time.Minute).UTC().Format(http.TimeFormat), 0, false},
		{"garbage", "soon", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}

			got, ok := retryAfterHeader(h, now)
			if ok != tt.wantOK {
				t.Fatalf("retryAfterHeader() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("retryAfterHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}
