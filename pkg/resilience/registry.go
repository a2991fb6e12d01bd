package resilience

// Registry owns the shared keyed state of one resilience domain: the
// circuit breakers, the rate-limit tracker, and the response cache.
//
// A Registry is constructed explicitly and injected into each Executor.
// Several executors may share one registry so that calls to the same
// dependency key see the same breaker and quota state; isolated
// registries (per tenant, per test) are equally valid. There are no
// package-level singletons.
type Registry struct {
	config   Config
	breakers *CircuitBreaker
	limits   *RateLimitTracker
	cache    *ResponseCache
}

// NewRegistry creates a registry from the given configuration, filling
// zero values with the documented defaults (see Config).
func NewRegistry(config Config) *Registry {
	config.applyDefaults()

	return &Registry{
		config: config,
		breakers: NewCircuitBreaker(BreakerConfig{
			FailureThreshold: config.FailureThreshold,
			OpenTimeout:      config.OpenTimeout,
			Clock:            config.Clock,
			Metrics:          config.Metrics,
			Events:           config.Events,
		}),
		limits: NewRateLimitTracker(TrackerConfig{
			Clock:   config.Clock,
			Metrics: config.Metrics,
			Events:  config.Events,
		}),
		cache: NewResponseCache(config.CacheTTL, config.Clock),
	}
}

// Breakers returns the keyed circuit breaker registry.
func (r *Registry) Breakers() *CircuitBreaker { return r.breakers }

// Limits returns the rate-limit tracker.
func (r *Registry) Limits() *RateLimitTracker { return r.limits }

// Cache returns the response cache.
func (r *Registry) Cache() *ResponseCache { return r.cache }

// Config returns a copy of the effective configuration after defaults.
func (r *Registry) Config() Config { return r.config }
