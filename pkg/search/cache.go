package search

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes completed search spaces by source signature, direction and
// bound. Concurrent requests for the same missing key share one
// computation; different keys compute independently.
type Cache[T any] struct {
	mu     sync.RWMutex
	spaces map[string]*SearchSpace[T]
	group  singleflight.Group

	computed atomic.Int64
}

// NewCache creates an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{spaces: make(map[string]*SearchSpace[T])}
}

// Get returns the cached space for key.
func (c *Cache[T]) Get(key string) (*SearchSpace[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.spaces[key]
	return s, ok
}

// GetOrCompute returns the cached space for key, calling compute at most
// once per key.
func (c *Cache[T]) GetOrCompute(key string, compute func() *SearchSpace[T]) *SearchSpace[T] {
	if s, ok := c.Get(key); ok {
		return s
	}
	v, _, _ := c.group.Do(key, func() (any, error) {
		if s, ok := c.Get(key); ok {
			return s, nil
		}
		s := compute()
		c.computed.Add(1)
		c.mu.Lock()
		c.spaces[key] = s
		c.mu.Unlock()
		return s, nil
	})
	return v.(*SearchSpace[T])
}

// Len returns the number of cached spaces.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.spaces)
}

// Computed returns how many spaces were computed over the cache lifetime.
func (c *Cache[T]) Computed() int64 { return c.computed.Load() }

// Clear drops every cached space.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.spaces)
}
