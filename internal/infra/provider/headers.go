package provider

import (
	"net/http"
	"strconv"
	"time"

	"callguard/pkg/resilience"
)

// rateLimitFromHeaders builds a quota snapshot for a dependency from
// response headers. It understands the Anthropic anthropic-ratelimit-*
// family, the generic X-RateLimit-* family, and Retry-After in both
// delta-seconds and HTTP-date form. The second return is false when the
// response carries no rate-limit metadata at all.
func rateLimitFromHeaders(key string, h http.Header, now time.Time) (resilience.RateLimitInfo, bool) {
	info := resilience.RateLimitInfo{Key: key, UpdatedAt: now}
	found := false

	if v, ok := headerInt(h, "anthropic-ratelimit-requests-remaining"); ok {
		info.RequestsRemaining = &v
		found = true
	}
	if v, ok := headerInt(h, "anthropic-ratelimit-tokens-remaining"); ok {
		info.TokensRemaining = &v
		found = true
	}
	if t, ok := headerTime(h, "anthropic-ratelimit-requests-reset"); ok {
		info.ResetTime = t
		found = true
	}
	if t, ok := headerTime(h, "anthropic-ratelimit-tokens-reset"); ok {
		// Both counters share one reset slot; keep the later one.
		if t.After(info.ResetTime) {
			info.ResetTime = t
		}
		found = true
	}

	if info.RequestsRemaining == nil {
		if v, ok := headerInt(h, "X-RateLimit-Remaining"); ok {
			info.RequestsRemaining = &v
			found = true
		}
	}
	if info.ResetTime.IsZero() {
		if t, ok := resetHeaderTime(h, "X-RateLimit-Reset", now); ok {
			info.ResetTime = t
			found = true
		}
	}

	if d, ok := retryAfterHeader(h, now); ok {
		info.RetryAfter = d
		if info.ResetTime.IsZero() {
			info.ResetTime = now.Add(d)
		}
		found = true
	}

	return info, found
}

// retryAfterHeader parses the Retry-After header, accepting both
// delta-seconds and HTTP-date forms.
func retryAfterHeader(h http.Header, now time.Time) (time.Duration, bool) {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if t, err := http.ParseTime(raw); err == nil && t.After(now) {
		return t.Sub(now), true
	}
	return 0, false
}

func headerInt(h http.Header, name string) (int, bool) {
	raw := h.Get(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func headerTime(h http.Header, name string) (time.Time, bool) {
	raw := h.Get(name)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// resetHeaderTime parses an X-RateLimit-Reset value, which providers
// send either as a Unix timestamp or as seconds from now. Values beyond
// a year's worth of seconds are taken as Unix timestamps.
func resetHeaderTime(h http.Header, name string, now time.Time) (time.Time, bool) {
	v, ok := headerInt(h, name)
	if !ok || v <= 0 {
		return time.Time{}, false
	}
	if v > 365*24*3600 {
		return time.Unix(int64(v), 0), true
	}
	return now.Add(time.Duration(v) * time.Second), true
}
