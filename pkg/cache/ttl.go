// Package cache provides a small in-process TTL cache used to memoize
// source reads within a run.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	v   any
	exp time.Time
}

// TTLCache is a bounded map with per-entry expiry. When full, the entry
// closest to expiring is evicted.
type TTLCache struct {
	mu         sync.RWMutex
	m          map[string]entry
	maxEntries int
}

// NewTTLCache creates a cache holding at most maxEntries items; zero
// means unbounded.
func NewTTLCache(maxEntries int) *TTLCache {
	return &TTLCache{m: make(map[string]entry), maxEntries: maxEntries}
}

// Get returns the live value for key, expiring lazily.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

// Set stores v under key for ttl; a non-positive ttl never expires.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	if c.maxEntries > 0 && len(c.m) >= c.maxEntries {
		if _, exists := c.m[key]; !exists {
			c.evictSoonest()
		}
	}
	c.m[key] = entry{v: v, exp: exp}
	c.mu.Unlock()
}

// Delete removes keys.
func (c *TTLCache) Delete(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.m, k)
	}
	c.mu.Unlock()
}

// Len reports the current entry count, expired items included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// evictSoonest drops the entry with the nearest expiry; caller holds the
// write lock.
func (c *TTLCache) evictSoonest() {
	var victim string
	var soonest time.Time
	first := true
	for k, e := range c.m {
		if first || (!e.exp.IsZero() && e.exp.Before(soonest)) || soonest.IsZero() {
			victim = k
			soonest = e.exp
			first = false
			if !e.exp.IsZero() && time.Now().After(e.exp) {
				break
			}
		}
	}
	if victim != "" {
		delete(c.m, victim)
	}
}
