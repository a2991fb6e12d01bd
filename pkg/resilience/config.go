package resilience

import (
	"fmt"
	"time"
)

// RetryConfig holds the retry policy for one call cycle.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// A call cycle therefore runs at most MaxRetries+1 attempts.
	// Default: 3
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	// Default: 1 second
	BaseDelay time.Duration

	// MaxDelay caps every computed delay, including rate-limit hints.
	// Default: 60 seconds
	MaxDelay time.Duration

	// JitterFraction is the fraction of delay to add as random jitter
	// (0.0 to 1.0). Default: 0.1
	JitterFraction float64

	// RateLimitMultiplier scales the backoff for rate-limit-classified
	// errors that carry no explicit wait hint. Default: 2.0
	RateLimitMultiplier float64

	// AttemptTimeout bounds each individual attempt. Exceeding it while
	// the parent context is still live is a retryable failure.
	// Zero disables the per-attempt timeout.
	AttemptTimeout time.Duration
}

// Config holds configuration for a resilience Registry and its
// components.
type Config struct {
	// FailureThreshold is the number of failures recorded since the last
	// reset required to open a dependency's circuit.
	// Default: 5
	FailureThreshold int

	// OpenTimeout is the cooldown after the last recorded failure before
	// an open circuit permits a half-open trial call.
	// Default: 60 seconds
	OpenTimeout time.Duration

	// CacheTTL is the default time-to-live for cached responses when a
	// call does not override it.
	// Default: 30 minutes
	CacheTTL time.Duration

	// Retry is the default retry policy; calls may override it.
	Retry RetryConfig

	// Clock provides time abstraction for testing.
	// Default: SystemClock
	Clock Clock

	// Metrics for recording resilience signals.
	// Default: NoopMetrics
	Metrics Metrics

	// Events receives observability events.
	// Default: NoopSink
	Events EventSink
}

// DefaultRetryConfig returns the default retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:          3,
		BaseDelay:           1 * time.Second,
		MaxDelay:            60 * time.Second,
		JitterFraction:      0.1,
		RateLimitMultiplier: 2.0,
	}
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		OpenTimeout:      60 * time.Second,
		CacheTTL:         30 * time.Minute,
		Retry:            DefaultRetryConfig(),
	}
}

// GenerationConfig returns configuration tuned for content-generation
// model providers. Moderate retry due to cost per call, long cache TTL
// because prompts repeat across runs.
func GenerationConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.BaseDelay = 2 * time.Second
	cfg.Retry.AttemptTimeout = 90 * time.Second
	return cfg
}

// ScraperConfig returns configuration tuned for feed and page scraping.
// More retries for transient network issues, shorter delays, shorter
// cache TTL because source content changes.
func ScraperConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 4
	cfg.Retry.MaxDelay = 30 * time.Second
	cfg.Retry.AttemptTimeout = 30 * time.Second
	cfg.CacheTTL = 15 * time.Minute
	return cfg
}

// AnalysisConfig returns configuration tuned for search/analysis
// providers. Fast retries, tight attempt timeout, short cache TTL.
func AnalysisConfig() Config {
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 2
	cfg.Retry.BaseDelay = 500 * time.Millisecond
	cfg.Retry.MaxDelay = 10 * time.Second
	cfg.Retry.AttemptTimeout = 10 * time.Second
	cfg.CacheTTL = 5 * time.Minute
	return cfg
}

// Validate checks if the retry policy is coherent.
//
// Returns an error if any configuration values are invalid.
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries must be non-negative, got %d", c.MaxRetries)
	}
	if c.BaseDelay < 0 {
		return fmt.Errorf("BaseDelay must be non-negative, got %s", c.BaseDelay)
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("MaxDelay must be non-negative, got %s", c.MaxDelay)
	}
	if c.MaxDelay > 0 && c.BaseDelay > c.MaxDelay {
		return fmt.Errorf("BaseDelay (%s) must not exceed MaxDelay (%s)", c.BaseDelay, c.MaxDelay)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1.0 {
		return fmt.Errorf("JitterFraction must be within [0, 1], got %g", c.JitterFraction)
	}
	if c.RateLimitMultiplier < 0 {
		return fmt.Errorf("RateLimitMultiplier must be non-negative, got %g", c.RateLimitMultiplier)
	}
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("AttemptTimeout must be non-negative, got %s", c.AttemptTimeout)
	}
	return nil
}

// Validate checks if the Config is valid.
//
// Returns an error if any configuration values are invalid.
func (c Config) Validate() error {
	if c.FailureThreshold < 0 {
		return fmt.Errorf("FailureThreshold must be non-negative, got %d", c.FailureThreshold)
	}
	if c.OpenTimeout < 0 {
		return fmt.Errorf("OpenTimeout must be non-negative, got %s", c.OpenTimeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CacheTTL must be non-negative, got %s", c.CacheTTL)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	return nil
}

// applyDefaults fills zero values with the documented defaults.
func (c *Config) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 60 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Minute
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry.MaxRetries = 3
	}
	c.Retry.applyDefaults()
	if c.Clock == nil {
		c.Clock = &SystemClock{}
	}
	if c.Metrics == nil {
		c.Metrics = &NoopMetrics{}
	}
	if c.Events == nil {
		c.Events = NoopSink{}
	}
}

// applyDefaults fills zero retry values with the documented defaults.
// MaxRetries is left alone: zero is a valid policy (single attempt) in
// per-call overrides; the registry defaults it separately.
func (c *RetryConfig) applyDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	if c.JitterFraction <= 0 {
		c.JitterFraction = 0.1
	}
	if c.RateLimitMultiplier <= 0 {
		c.RateLimitMultiplier = 2.0
	}
}
