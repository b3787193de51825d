// Package cache provides a small in-memory TTL cache for tool results.
//
// Entries are reaped lazily: a lookup past the TTL removes the entry and
// reports a miss. There is no background sweeper. Safe for concurrent use.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	insertedAt time.Time
	value      V
}

// Cache is a TTL-bounded map keyed by strings built with Key.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[V]
}

// Option configures optional cache behaviour.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source. Tests use this to step time
// deterministically.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns a cache whose entries expire ttl after insertion. A
// non-positive ttl yields a cache that never hits.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key if it is still within the TTL.
// An expired entry is deleted on the way out.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have
		// refreshed the entry between the unlock and here.
		if cur, still := c.entries[key]; still && cur.insertedAt.Equal(e.insertedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, stamping it with the current time.
func (c *Cache[V]) Put(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{insertedAt: c.now(), value: value}
	c.mu.Unlock()
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Key builds a provider-qualified cache key. The query is trimmed and
// lower-cased so trivially different spellings share an entry.
func Key(provider, query string, count int) string {
	return fmt.Sprintf("%s|%s|%d", provider, strings.ToLower(strings.TrimSpace(query)), count)
}
