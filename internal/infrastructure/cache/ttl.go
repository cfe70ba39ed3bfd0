// Package cache holds scraped results in memory for a fixed time-to-live.
//
// Expiry is lazy: a stale entry is removed by the read that finds it,
// and there is no background sweeper.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long a scraped timetable stays fresh.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL is a concurrency-safe string-keyed cache whose entries expire a
// fixed duration after they were written.
type TTL[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry[V]
}

// Option configures a TTL cache.
type Option[V any] func(*TTL[V])

// WithClock overrides the time source.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTL[V]) { c.now = now }
}

// NewTTL creates an empty cache. A non-positive ttl falls back to DefaultTTL.
func NewTTL[V any](ttl time.Duration, opts ...Option[V]) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &TTL[V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if it is still fresh. An expired entry is
// deleted and reported as a miss.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.isStale(e) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous entry and restarting
// its lifetime.
func (c *TTL[V]) Put(key string, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, storedAt: c.now()}
	c.mu.Unlock()
}

// Len reports stored entries, including expired ones not yet evicted.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured lifetime.
func (c *TTL[V]) TTL() time.Duration {
	return c.ttl
}

// An entry exactly ttl old is still fresh.
func (c *TTL[V]) isStale(e entry[V]) bool {
	return c.now().Sub(e.storedAt) > c.ttl
}
