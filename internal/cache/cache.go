// Package cache provides an in-process TTL cache with an injected clock,
// constructed once per process and passed by reference so tests can build
// isolated instances.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// TTL is a mutex-guarded expiring key/value cache.
type TTL struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]entry
}

// New creates a cache with the given entry lifetime. A nil now falls back
// to time.Now.
func New(ttl time.Duration, now func() time.Time) *TTL {
	if now == nil {
		now = time.Now
	}
	return &TTL{
		ttl:   ttl,
		now:   now,
		items: make(map[string]entry),
	}
}

// Get returns the cached value if present and unexpired.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return e.value, true
}

// Set stores a value for the cache's TTL.
func (c *TTL) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate removes a key.
func (c *TTL) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Flush removes every entry.
func (c *TTL) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}
