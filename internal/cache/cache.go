// Package cache provides a small TTL cache keyed by composite identity.
// Staleness is explicit: callers pass the TTL they can tolerate on every
// read, and force-refresh by invalidating first, instead of relying on
// ambient flags.
package cache

import (
	"sync"
	"time"
)

// entry pairs a value with its storage time.
type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a concurrency-safe TTL cache.
type Cache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	now  func() time.Time // overridable in tests
}

// New creates an empty cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]entry[V]),
		now:  time.Now,
	}
}

// Get returns the cached value if it was stored within ttl.
func (c *Cache[K, V]) Get(key K, ttl time.Duration) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || c.now().Sub(e.storedAt) > ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value, stamping it with the current time.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{value: value, storedAt: c.now()}
}

// Invalidate removes a key. Combined with a subsequent Get miss this is
// the force-refresh path.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len returns the number of entries, including expired ones not yet
// overwritten.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
