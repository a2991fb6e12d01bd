package resilience

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Operation is a caller-supplied closure performing one outbound call.
// The layer never constructs these calls itself.
type Operation func(ctx context.Context) (any, error)

// RetryExecutor wraps a single operation with bounded, classified
// retries and exponential backoff. The policy travels with each call
// (see RetryConfig); the executor carries only the shared
// clock/metrics/events collaborators.
type RetryExecutor struct {
	clock   Clock
	metrics Metrics
	events  EventSink
}

// NewRetryExecutor creates a retry executor, defaulting nil
// collaborators.
func NewRetryExecutor(clock Clock, metrics Metrics, events EventSink) *RetryExecutor {
	if clock == nil {
		clock = &SystemClock{}
	}
	if metrics == nil {
		metrics = &NoopMetrics{}
	}
	if events == nil {
		events = NoopSink{}
	}
	return &RetryExecutor{clock: clock, metrics: metrics, events: events}
}

// Do runs the operation up to cfg.MaxRetries+1 times.
//
// Non-retryable errors (validation, system, unknown kinds) propagate
// unwrapped from the attempt that produced them. Context cancellation
// is observed before each attempt and during backoff sleeps, and
// returns the context's error. On exhaustion the last error is wrapped
// in a ServiceError carrying the dependency key, the attempt count, and
// the elapsed time.
//
// Returns the operation's value, the number of attempts consumed, and
// the final error.
func (r *RetryExecutor) Do(ctx context.Context, cfg RetryConfig, dependency string, op Operation) (any, int, error) {
	cfg.applyDefaults()
	maxAttempts := cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := r.clock.Now()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		value, err := r.runAttempt(ctx, cfg, op)
		if err == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.String("dependency", dependency),
					slog.Int("attempt", attempt))
			}
			return value, attempt, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			slog.Warn("non-retryable error, aborting",
				slog.String("dependency", dependency),
				slog.String("kind", Classify(err).String()),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			return nil, attempt, err
		}

		// Don't wait after the last attempt.
		if attempt == maxAttempts {
			break
		}

		delay := r.delayFor(cfg, attempt, err)
		r.metrics.RecordRetry(dependency, attempt)
		r.events.Emit(Event{
			Type:       EventRetry,
			Dependency: dependency,
			At:         r.clock.Now(),
			Attempt:    attempt,
			Delay:      delay,
			Err:        err.Error(),
		})
		slog.Warn("operation failed, retrying",
			slog.String("dependency", dependency),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, ctx.Err()
		}
	}

	elapsed := r.clock.Now().Sub(start)
	return nil, maxAttempts, &ServiceError{
		DependencyKey: dependency,
		StatusCode:    statusOf(lastErr),
		Attempts:      maxAttempts,
		Elapsed:       elapsed,
		Err:           lastErr,
	}
}

// runAttempt executes one attempt, applying the per-attempt timeout. A
// timeout that fires while the parent context is still live is wrapped
// as a retryable network failure.
func (r *RetryExecutor) runAttempt(ctx context.Context, cfg RetryConfig, op Operation) (any, error) {
	if cfg.AttemptTimeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
	defer cancel()

	value, err := op(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return nil, &NetworkError{Op: "attempt (timeout " + cfg.AttemptTimeout.String() + ")", Err: err}
	}
	return value, err
}

// delayFor computes the backoff before the next attempt.
//
// delay = min(MaxDelay, BaseDelay * 2^(attempt-1) * (1 + jitter)), with
// jitter uniform in [0, JitterFraction]. Rate-limit errors prefer an
// explicit wait hint carried on the error; absent a hint they scale the
// computed delay by RateLimitMultiplier. Every path is capped at
// MaxDelay.
func (r *RetryExecutor) delayFor(cfg RetryConfig, attempt int, err error) time.Duration {
	if hint, ok := RetryAfterHint(err); ok {
		if hint > cfg.MaxDelay {
			return cfg.MaxDelay
		}
		return hint
	}

	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	delay = addJitter(delay, cfg.JitterFraction)
	if Classify(err) == KindRateLimit {
		delay *= cfg.RateLimitMultiplier
	}

	capped := time.Duration(delay)
	if capped > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return capped
}

// addJitter adds random jitter to a delay to prevent thundering herd.
func addJitter(delay float64, jitterFraction float64) float64 {
	if jitterFraction <= 0 {
		return delay
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}
	// #nosec G404 -- Using math/rand is acceptable for jitter calculation.
	// Cryptographic randomness is not required for retry backoff jitter.
	return delay * (1 + rand.Float64()*jitterFraction)
}
