package resilience

import (
	"sync"
	"time"
)

// cacheEntry holds one stored response and its expiry instant.
type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// ResponseCache is a TTL-keyed memo of successful call results.
//
// Entries are evicted lazily: an expired entry is deleted when a read
// observes it; there is no background sweeper goroutine. The key space
// is bounded by the distinct (operation, normalized-parameters)
// combinations callers construct; callers own key normalization
// (case-folding, stable ordering of option fields).
type ResponseCache struct {
	clock      Clock
	defaultTTL time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewResponseCache creates a cache.
//
// If defaultTTL is 0, it defaults to 30 minutes.
// If clock is nil, it defaults to SystemClock.
func NewResponseCache(defaultTTL time.Duration, clock Clock) *ResponseCache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	if clock == nil {
		clock = &SystemClock{}
	}
	return &ResponseCache{
		clock:      clock,
		defaultTTL: defaultTTL,
		entries:    make(map[string]cacheEntry),
	}
}

// Get returns the stored value for the key if its expiry is strictly in
// the future. An entry at or past its expiry is deleted and reported
// absent.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if entry.expiresAt.After(c.clock.Now()) {
		return entry.value, true
	}

	// Expired: evict lazily. Re-check under the write lock in case a
	// concurrent Set replaced the entry since the read.
	c.mu.Lock()
	if current, ok := c.entries[key]; ok && !current.expiresAt.After(c.clock.Now()) {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil, false
}

// Set stores the value with expiry now+ttl, overwriting any prior entry
// for the key. A non-positive ttl falls back to the cache default.
func (c *ResponseCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: c.clock.Now().Add(ttl),
	}
}

// Delete removes the entry for the key, if any.
func (c *ResponseCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, including any that have
// expired but not yet been observed by a read.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
