package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock makes expiry deterministic without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(clock *fakeClock, optFns ...func(o *Options)) *Cache {
	c := New(optFns...)
	c.now = clock.Now
	return c
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(newFakeClock())

	c.Set("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCacheTTLExpiry(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("k", "v", 100*time.Millisecond)

	_, ok := c.Get("k")
	assert.True(t, ok)

	clock.Advance(99 * time.Millisecond)
	_, ok = c.Get("k")
	assert.True(t, ok, "entry should survive until its ttl elapses")

	clock.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok, "read exactly at expiry must miss")
}

func TestCacheDefaultTTL(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock, func(o *Options) { o.DefaultTTL = time.Minute })

	c.Set("short", 1)
	c.Set("long", 2, time.Hour)

	clock.Advance(2 * time.Minute)

	_, ok := c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("long")
	assert.True(t, ok, "explicit ttl overrides the default")
}

func TestCacheNoTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("k", "v")
	clock.Advance(24 * time.Hour)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCacheHasDoesNotCountHits(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set("k", "v")

	assert.True(t, c.Has("k"))
	assert.False(t, c.Has("missing"))

	stats := c.GetStats()
	assert.Equal(t, 0, stats.TotalHits)

	c.Get("k")
	c.Get("k")
	stats = c.GetStats()
	assert.Equal(t, 2, stats.TotalHits)
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := newTestCache(newFakeClock())
	c.Set("a", 1)
	c.Set("b", 2)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Clear()
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestCacheCleanup(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("expiring1", 1, time.Second)
	c.Set("expiring2", 2, time.Second)
	c.Set("persistent", 3)

	clock.Advance(2 * time.Second)

	assert.Equal(t, 2, c.Cleanup())
	assert.Equal(t, 0, c.Cleanup())

	stats := c.GetStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, []string{"persistent"}, stats.Keys)
}

func TestCacheStatsSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	c := newTestCache(clock)

	c.Set("live", 1)
	c.Set("dead", 2, time.Second)
	clock.Advance(2 * time.Second)

	stats := c.GetStats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, []string{"live"}, stats.Keys)
}

func TestCacheGetOrSet(t *testing.T) {
	c := newTestCache(newFakeClock())

	calls := 0
	factory := func() (any, error) {
		calls++
		return "computed", nil
	}

	got, err := c.GetOrSet("k", factory)
	require.NoError(t, err)
	assert.Equal(t, "computed", got)
	assert.Equal(t, 1, calls)

	got, err = c.GetOrSet("k", factory)
	require.NoError(t, err)
	assert.Equal(t, "computed", got)
	assert.Equal(t, 1, calls, "cached value must not re-run the factory")
}

func TestCacheGetOrSetErrorNotCached(t *testing.T) {
	c := newTestCache(newFakeClock())

	boom := errors.New("boom")
	_, err := c.GetOrSet("k", func() (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	assert.False(t, c.Has("k"), "a failed factory must not populate the cache")
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := newTestCache(newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("shared", n)
				c.Get("shared")
				c.Has("shared")
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok)
}
