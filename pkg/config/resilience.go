package config

import (
	"log/slog"
	"time"

	"callguard/pkg/resilience"
)

// LoadResilienceConfig loads resilient-call configuration from environment variables.
//
// This function reads the shared circuit breaker, cache, and retry settings
// from environment variables and returns a validated resilience.Config. If any
// values are invalid, it logs warnings and uses safe defaults instead of failing.
//
// Environment variables:
//   - RESILIENCE_FAILURE_THRESHOLD: Consecutive failures before a breaker opens (default: 5)
//   - RESILIENCE_OPEN_TIMEOUT: Cooldown before an open breaker permits a trial (default: 60s)
//   - RESILIENCE_CACHE_TTL: Response cache time-to-live (default: 30m)
//   - RESILIENCE_MAX_RETRIES: Retries after the first attempt (default: 3)
//   - RESILIENCE_BASE_DELAY: Base backoff delay (default: 1s)
//   - RESILIENCE_MAX_DELAY: Backoff delay ceiling (default: 60s)
//   - RESILIENCE_JITTER_FRACTION: Upper bound of random jitter, 0 to 1 (default: 0.1)
//   - RESILIENCE_RATE_LIMIT_MULTIPLIER: Extra backoff factor for quota errors (default: 2.0)
//   - RESILIENCE_ATTEMPT_TIMEOUT: Per-attempt timeout, 0 disables (default: 0)
//
// The Clock, Metrics, and Events collaborators are not environment-driven;
// callers wire them before passing the config to resilience.NewRegistry.
//
// Returns:
//   - resilience.Config: Validated configuration with defaults applied
//   - error: Always nil (validation failures result in warnings and defaults)
//
// Example:
//
//	cfg, err := config.LoadResilienceConfig()
//	if err != nil {
//	    return fmt.Errorf("failed to load resilience config: %w", err)
//	}
//	registry := resilience.NewRegistry(cfg)
func LoadResilienceConfig() (resilience.Config, error) {
	config := resilience.Config{}

	// Circuit breaker
	failureThreshold := GetEnvInt("RESILIENCE_FAILURE_THRESHOLD", 5)
	if failureThreshold < 1 {
		slog.Warn("invalid RESILIENCE_FAILURE_THRESHOLD, using default",
			slog.Int("value", failureThreshold),
			slog.Int("default", 5))
		failureThreshold = 5
	}
	config.FailureThreshold = failureThreshold

	openTimeout := GetEnvDuration("RESILIENCE_OPEN_TIMEOUT", 60*time.Second)
	if err := ValidatePositiveDuration(openTimeout); err != nil {
		slog.Warn("invalid RESILIENCE_OPEN_TIMEOUT, using default",
			slog.String("value", openTimeout.String()),
			slog.String("default", "60s"),
			slog.String("error", err.Error()))
		openTimeout = 60 * time.Second
	}
	config.OpenTimeout = openTimeout

	// Response cache
	cacheTTL := GetEnvDuration("RESILIENCE_CACHE_TTL", 30*time.Minute)
	if err := ValidatePositiveDuration(cacheTTL); err != nil {
		slog.Warn("invalid RESILIENCE_CACHE_TTL, using default",
			slog.String("value", cacheTTL.String()),
			slog.String("default", "30m"),
			slog.String("error", err.Error()))
		cacheTTL = 30 * time.Minute
	}
	config.CacheTTL = cacheTTL

	// Retry policy
	config.Retry = loadRetryConfig()

	// Validate the entire configuration
	if err := config.Validate(); err != nil {
		slog.Warn("resilience configuration validation failed, applying defaults",
			slog.String("error", err.Error()))
		config = resilience.DefaultConfig()
	}

	return config, nil
}

// loadRetryConfig loads the retry policy from environment variables.
//
// Environment variables:
//   - RESILIENCE_MAX_RETRIES: Retries after the first attempt (default: 3)
//   - RESILIENCE_BASE_DELAY: Base backoff delay (default: 1s)
//   - RESILIENCE_MAX_DELAY: Backoff delay ceiling (default: 60s)
//   - RESILIENCE_JITTER_FRACTION: Upper bound of random jitter, 0 to 1 (default: 0.1)
//   - RESILIENCE_RATE_LIMIT_MULTIPLIER: Extra backoff factor for quota errors (default: 2.0)
//   - RESILIENCE_ATTEMPT_TIMEOUT: Per-attempt timeout, 0 disables (default: 0)
//
// Returns:
//   - resilience.RetryConfig: Retry policy with defaults applied
func loadRetryConfig() resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()

	maxRetries := GetEnvInt("RESILIENCE_MAX_RETRIES", retry.MaxRetries)
	if maxRetries < 0 {
		slog.Warn("invalid RESILIENCE_MAX_RETRIES, using default",
			slog.Int("value", maxRetries),
			slog.Int("default", retry.MaxRetries))
		maxRetries = retry.MaxRetries
	}
	retry.MaxRetries = maxRetries

	baseDelay := GetEnvDuration("RESILIENCE_BASE_DELAY", retry.BaseDelay)
	if err := ValidatePositiveDuration(baseDelay); err != nil {
		slog.Warn("invalid RESILIENCE_BASE_DELAY, using default",
			slog.String("value", baseDelay.String()),
			slog.String("default", retry.BaseDelay.String()),
			slog.String("error", err.Error()))
		baseDelay = retry.BaseDelay
	}
	retry.BaseDelay = baseDelay

	maxDelay := GetEnvDuration("RESILIENCE_MAX_DELAY", retry.MaxDelay)
	if err := ValidatePositiveDuration(maxDelay); err != nil {
		slog.Warn("invalid RESILIENCE_MAX_DELAY, using default",
			slog.String("value", maxDelay.String()),
			slog.String("default", retry.MaxDelay.String()),
			slog.String("error", err.Error()))
		maxDelay = retry.MaxDelay
	}
	if maxDelay < baseDelay {
		slog.Warn("RESILIENCE_MAX_DELAY below base delay, using base delay",
			slog.String("value", maxDelay.String()),
			slog.String("base", baseDelay.String()))
		maxDelay = baseDelay
	}
	retry.MaxDelay = maxDelay

	jitter := GetEnvFloat64("RESILIENCE_JITTER_FRACTION", retry.JitterFraction)
	if jitter < 0 || jitter > 1 {
		slog.Warn("invalid RESILIENCE_JITTER_FRACTION, using default",
			slog.Float64("value", jitter),
			slog.Float64("default", retry.JitterFraction))
		jitter = retry.JitterFraction
	}
	retry.JitterFraction = jitter

	multiplier := GetEnvFloat64("RESILIENCE_RATE_LIMIT_MULTIPLIER", retry.RateLimitMultiplier)
	if multiplier < 1 {
		slog.Warn("invalid RESILIENCE_RATE_LIMIT_MULTIPLIER, using default",
			slog.Float64("value", multiplier),
			slog.Float64("default", retry.RateLimitMultiplier))
		multiplier = retry.RateLimitMultiplier
	}
	retry.RateLimitMultiplier = multiplier

	attemptTimeout := GetEnvDuration("RESILIENCE_ATTEMPT_TIMEOUT", 0)
	if err := ValidateNonNegativeDuration(attemptTimeout); err != nil {
		slog.Warn("invalid RESILIENCE_ATTEMPT_TIMEOUT, disabling",
			slog.String("value", attemptTimeout.String()),
			slog.String("error", err.Error()))
		attemptTimeout = 0
	}
	retry.AttemptTimeout = attemptTimeout

	return retry
}
