package scheduler

import (
	"sync"
	"time"
)

// Cache is a process-scoped read-through cache keyed by data category and
// platform. Losing it only costs extra store reads; correctness never
// depends on its contents. The clock is injected so tests control time.
type Cache struct {
	mu      sync.RWMutex
	clock   func() time.Time
	entries map[string]cacheEntry
}

type cacheEntry struct {
	data     any
	storedAt time.Time
	ttl      time.Duration
}

// NewCache creates a cache using the given clock; nil defaults to
// time.Now.
func NewCache(clock func() time.Time) *Cache {
	if clock == nil {
		clock = time.Now
	}
	return &Cache{
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

// CacheKey builds the canonical key for a category on a platform.
func CacheKey(category Category, platform string) string {
	if platform == "" {
		return category.String()
	}
	return category.String() + ":" + platform
}

// Get returns the cached payload and its storage time, or a miss when the
// entry is absent or past its TTL.
func (c *Cache) Get(key string) (any, time.Time, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, time.Time{}, false
	}
	if entry.ttl > 0 && c.clock().Sub(entry.storedAt) > entry.ttl {
		return nil, time.Time{}, false
	}
	return entry.data, entry.storedAt, true
}

// Set stores a payload. Concurrent writers to the same key are
// last-write-wins; the cache makes no stronger promise.
func (c *Cache) Set(key string, data any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{data: data, storedAt: c.clock(), ttl: ttl}
	c.mu.Unlock()
}

// Invalidate drops one entry.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
