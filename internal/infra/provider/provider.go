// Package provider contains adapters for the volatile upstream
// dependencies the pipeline calls: LLM generation (Anthropic, OpenAI),
// feed and page scraping, and the gRPC analysis service.
//
// Adapters build the plain operations the execution layer runs. They
// own classification of upstream failures into resilience error kinds
// and feed rate-limit metadata into the shared tracker. They never
// retry, cache, or short-circuit internally; pkg/resilience owns that.
package provider

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"callguard/pkg/resilience"
)

// Dependency keys under which adapter calls are tracked by the
// resilience layer. Generation and analysis use one key per provider;
// scraping keys are derived per host so one misbehaving site does not
// open the breaker for every site.
const (
	DependencyAnthropic = "anthropic"
	DependencyOpenAI    = "openai"
	DependencyAnalysis  = "analysis"
)

// userAgent identifies outbound scraping requests.
const userAgent = "callguard-pipeline/1.0"

// truncationMarker is appended to prompts and extracted text that were
// cut to a rune budget, so downstream consumers know content is
// partial.
const truncationMarker = "...\n(content truncated)"

// FeedDependencyKey returns the resilience dependency key for a feed
// URL, one key per host.
func FeedDependencyKey(feedURL string) string {
	return hostKey("feed", feedURL)
}

// PageDependencyKey returns the resilience dependency key for a page
// URL, one key per host.
func PageDependencyKey(pageURL string) string {
	return hostKey("page", pageURL)
}

func hostKey(prefix, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return prefix + ":" + rawURL
	}
	return prefix + ":" + u.Hostname()
}

// Generation is the outcome of one LLM generation call.
type Generation struct {
	// Text is the generated completion.
	Text string

	// Provider identifies the adapter that produced the text.
	Provider string

	// Model is the concrete model that served the request, as reported
	// by the provider.
	Model string

	// InputTokens and OutputTokens mirror the usage reported by the
	// provider; zero when the provider reports none.
	InputTokens  int
	OutputTokens int
}

// NewHTTPClient builds the outbound HTTP client the scraping adapters
// share: pooled connections, TLS 1.2 minimum, and an overall request
// timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// classifyStatus maps a non-200 scrape response onto a resilience
// kind: 429 carries the Retry-After hint, 408 and 5xx stay retryable,
// and the remaining 4xx are treated as permanent for this URL.
func classifyStatus(key string, resp *http.Response, what string) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		hint, _ := retryAfterHeader(resp.Header, time.Now())
		return &resilience.RateLimitError{
			RetryAfter: hint,
			Message:    fmt.Sprintf("%s host rate limit exceeded", what),
		}
	case resp.StatusCode == http.StatusRequestTimeout:
		return &resilience.NetworkError{
			Op:  "fetch " + what,
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	case resp.StatusCode >= 500:
		return &resilience.ServiceError{
			DependencyKey: key,
			StatusCode:    resp.StatusCode,
			Err:           fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status),
		}
	default:
		return &resilience.ValidationError{
			Field:   "url",
			Message: fmt.Sprintf("%s returned HTTP %d: %s", what, resp.StatusCode, resp.Status),
		}
	}
}

// truncateRunes cuts s to at most limit runes, appending a marker when
// content was removed.
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncationMarker
}
