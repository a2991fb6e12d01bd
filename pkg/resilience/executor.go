package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Fallback supplies a degraded substitute result when the real call
// cannot succeed. Its value is always returned with Result.Degraded set
// so callers can tell it apart from a live result.
type Fallback func(ctx context.Context) (any, error)

// Options carries the per-call settings of one Execute cycle.
type Options struct {
	// CacheKey enables response caching for this call under the given
	// normalized key. Empty disables caching. The cache key space is
	// distinct from the dependency key space: one dependency serves
	// many (operation, parameters) combinations, and callers own the
	// normalization of those combinations.
	CacheKey string

	// CacheTTL overrides the registry's default TTL for this call.
	// Zero uses the default.
	CacheTTL time.Duration

	// Retry overrides the registry's default retry policy for this
	// call. Zero-valued delay/jitter fields inherit the defaults;
	// MaxRetries is taken verbatim, so an override with MaxRetries 0
	// runs a single attempt.
	Retry *RetryConfig

	// AttemptTimeout overrides the policy's per-attempt timeout.
	AttemptTimeout time.Duration

	// Fallback, when set, is invoked on exhausted retries or an open
	// breaker and its value returned as an explicitly degraded result.
	Fallback Fallback

	// Meta is arbitrary caller context attached to failure logs.
	Meta map[string]string
}

// Result is the outcome of one Execute cycle.
type Result struct {
	// Value is the operation's (or fallback's, or cache's) payload.
	Value any

	// Degraded is true when Value came from the fallback supplier
	// rather than a live call.
	Degraded bool

	// FromCache is true when Value was served from the response cache
	// without invoking the operation.
	FromCache bool

	// Attempts is the number of operation attempts consumed. Zero for
	// cache hits and breaker short circuits.
	Attempts int
}

// Executor orchestrates one resilient call path per dependency key:
// validate → cache → breaker → rate-limit wait → retry → fallback,
// updating breaker and cache state on the way out.
type Executor struct {
	registry *Registry
	retry    *RetryExecutor
	clock    Clock
	metrics  Metrics
	events   EventSink
}

// NewExecutor creates an executor over the given registry. The registry
// must not be nil; its clock, metrics, and event sink are shared.
func NewExecutor(registry *Registry) *Executor {
	cfg := registry.Config()
	return &Executor{
		registry: registry,
		retry:    NewRetryExecutor(cfg.Clock, cfg.Metrics, cfg.Events),
		clock:    cfg.Clock,
		metrics:  cfg.Metrics,
		events:   cfg.Events,
	}
}

// Execute runs one resilient call cycle for the dependency key.
//
// The flow:
//  1. Validate inputs; a validation failure returns synchronously and
//     is neither retried, cached, nor recorded against the breaker.
//  2. If Options.CacheKey is set, a cache hit returns immediately.
//  3. If the breaker is open for the key, the call is skipped entirely
//     and treated as already exhausted (step 6).
//  4. Wait out any exhausted upstream quota for the key.
//  5. Run the operation through the retry executor.
//  6. Success resets the breaker, fills the cache, and returns a live
//     result. Failure records one breaker failure and then either
//     returns the fallback's value labeled degraded or surfaces a
//     ServiceError carrying the key, attempts, and last status.
//
// Context cancellation propagates as the context's error: it is not
// recorded against the breaker and does not trigger the fallback.
func (e *Executor) Execute(ctx context.Context, key string, op Operation, opts Options) (Result, error) {
	if err := validateCall(key, op, opts); err != nil {
		return Result{}, err
	}

	start := e.clock.Now()

	if opts.CacheKey != "" {
		if value, ok := e.registry.cache.Get(opts.CacheKey); ok {
			e.metrics.RecordCacheLookup(key, "hit")
			e.events.Emit(Event{Type: EventCacheHit, Dependency: key, At: start})
			slog.Debug("cache hit",
				slog.String("dependency", key),
				slog.String("cache_key", opts.CacheKey))
			return Result{Value: value, FromCache: true}, nil
		}
		e.metrics.RecordCacheLookup(key, "miss")
		e.events.Emit(Event{Type: EventCacheMiss, Dependency: key, At: start})
	}

	var (
		value    any
		attempts int
		callErr  error
	)
	if e.registry.breakers.IsOpen(key) {
		slog.Warn("circuit open, skipping call",
			slog.String("dependency", key))
		e.metrics.RecordCall(key, "short_circuit")
		callErr = &ServiceError{DependencyKey: key, Err: ErrCircuitOpen}
	} else {
		if err := e.registry.limits.WaitIfNeeded(ctx, key); err != nil {
			return Result{}, err
		}
		value, attempts, callErr = e.retry.Do(ctx, e.retryPolicy(opts), key, op)
	}

	elapsed := e.clock.Now().Sub(start)

	if callErr == nil {
		e.registry.breakers.Reset(key)
		if opts.CacheKey != "" {
			e.registry.cache.Set(opts.CacheKey, value, opts.CacheTTL)
		}
		e.metrics.RecordCall(key, "success")
		e.metrics.RecordCallDuration(key, elapsed)
		e.events.Emit(Event{
			Type:       EventCallSuccess,
			Dependency: key,
			At:         e.clock.Now(),
			Attempt:    attempts,
		})
		return Result{Value: value, Attempts: attempts}, nil
	}

	// A cancelled call is neither success nor failure: surface the
	// error without touching the breaker or the fallback.
	if ctx.Err() != nil {
		return Result{}, callErr
	}

	kind := Classify(callErr)
	if kind == KindValidation {
		return Result{}, callErr
	}

	e.registry.breakers.RecordFailure(key)
	e.metrics.RecordCallDuration(key, elapsed)

	if kind == KindSystem {
		e.metrics.RecordCall(key, "failure")
		e.events.Emit(e.failureEvent(key, attempts, callErr))
		slog.Error("internal fault during dependency call",
			slog.String("dependency", key),
			slog.Int("attempts", attempts),
			slog.Any("error", callErr),
			slog.Any("meta", opts.Meta))
		return Result{}, callErr
	}

	if opts.Fallback != nil {
		fallbackValue, fallbackErr := opts.Fallback(ctx)
		if fallbackErr == nil {
			e.metrics.RecordCall(key, "degraded")
			e.events.Emit(Event{
				Type:       EventFallback,
				Dependency: key,
				At:         e.clock.Now(),
				Attempt:    attempts,
				Err:        callErr.Error(),
			})
			slog.Warn("returning degraded fallback result",
				slog.String("dependency", key),
				slog.Int("attempts", attempts),
				slog.Any("cause", callErr),
				slog.Any("meta", opts.Meta))
			return Result{Value: fallbackValue, Degraded: true, Attempts: attempts}, nil
		}
		slog.Error("fallback supplier failed",
			slog.String("dependency", key),
			slog.Any("error", fallbackErr))
	}

	e.metrics.RecordCall(key, "failure")
	e.events.Emit(e.failureEvent(key, attempts, callErr))

	var svcErr *ServiceError
	if errors.As(callErr, &svcErr) && svcErr.DependencyKey == key {
		return Result{}, callErr
	}
	return Result{}, &ServiceError{
		DependencyKey: key,
		StatusCode:    statusOf(callErr),
		Attempts:      attempts,
		Elapsed:       elapsed,
		Err:           callErr,
	}
}

// retryPolicy merges the per-call override onto the registry default.
func (e *Executor) retryPolicy(opts Options) RetryConfig {
	cfg := e.registry.config.Retry
	if opts.Retry != nil {
		cfg = *opts.Retry
		cfg.applyDefaults()
	}
	if opts.AttemptTimeout > 0 {
		cfg.AttemptTimeout = opts.AttemptTimeout
	}
	return cfg
}

func (e *Executor) failureEvent(key string, attempts int, err error) Event {
	return Event{
		Type:       EventCallFailure,
		Dependency: key,
		At:         e.clock.Now(),
		Attempt:    attempts,
		Err:        err.Error(),
	}
}

// validateCall checks the Execute inputs.
func validateCall(key string, op Operation, opts Options) error {
	if key == "" {
		return &ValidationError{Field: "dependencyKey", Message: "must not be empty"}
	}
	if op == nil {
		return &ValidationError{Field: "operation", Message: "must not be nil"}
	}
	if opts.CacheTTL < 0 {
		return &ValidationError{Field: "cacheTTL", Message: "must not be negative"}
	}
	if opts.AttemptTimeout < 0 {
		return &ValidationError{Field: "attemptTimeout", Message: "must not be negative"}
	}
	if opts.Retry != nil {
		if err := opts.Retry.Validate(); err != nil {
			return &ValidationError{Field: "retryPolicy", Message: err.Error()}
		}
	}
	return nil
}
