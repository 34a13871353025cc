// Package cache provides the response-caching primitives used to accelerate
// engine executions: a TTL cache with lazy expiry and hit statistics, and a
// fixed-capacity LRU variant. Both are safe for concurrent use by unrelated
// conversations.
package cache

import (
	"sort"
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time // zero means no expiry
	hits      int
}

func (e *entry) expired(now time.Time) bool {
	// Expiry boundary is inclusive: a read exactly at expiresAt misses.
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Stats summarizes the current cache contents.
type Stats struct {
	Size      int      `json:"size"`
	Keys      []string `json:"keys"`
	TotalHits int      `json:"total_hits"`
}

// Options configure a Cache.
type Options struct {
	// DefaultTTL applies to Set calls without an explicit ttl; zero means
	// entries without an explicit ttl never expire.
	DefaultTTL time.Duration
}

// Cache is a key/value store with optional per-entry time-to-live. Expired
// entries are evicted lazily on read; Cleanup reclaims memory eagerly.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	defaultTTL time.Duration
	now        func() time.Time
}

// New constructs an empty cache.
func New(optFns ...func(o *Options)) *Cache {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: opts.DefaultTTL,
		now:        time.Now,
	}
}

// Set stores value under key. An explicit ttl overrides the default; with
// neither, the entry never expires.
func (c *Cache) Set(key string, value any, ttl ...time.Duration) {
	effective := c.defaultTTL
	if len(ttl) > 0 {
		effective = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: value}
	if effective > 0 {
		e.expiresAt = c.now().Add(effective)
	}
	c.entries[key] = e
}

// Get returns the cached value, or false if the key is absent or expired.
// An expired entry is evicted by the read that observes it.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, false
	}
	e.hits++
	return e.value, true
}

// Has reports whether key is present and unexpired, without counting a hit.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Delete removes key, reporting whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Cleanup eagerly removes every expired entry and returns the count removed.
// It exists purely to reclaim memory; lazy expiry already guarantees
// correctness.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// GetStats returns size, keys and cumulative hit count for the live entries.
func (c *Cache) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Keys: make([]string, 0, len(c.entries))}
	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			continue
		}
		stats.Size++
		stats.Keys = append(stats.Keys, key)
		stats.TotalHits += e.hits
	}
	sort.Strings(stats.Keys)
	return stats
}

// GetOrSet returns the cached value when present and unexpired; otherwise it
// computes the value via factory, stores it and returns it. The factory runs
// at most once per call and its error is returned without caching anything.
//
// Concurrent GetOrSet calls for the same absent key may each run the factory;
// callers needing single-flight semantics must coordinate externally.
func (c *Cache) GetOrSet(key string, factory func() (any, error), ttl ...time.Duration) (any, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := factory()
	if err != nil {
		return nil, err
	}
	c.Set(key, value, ttl...)
	return value, nil
}
