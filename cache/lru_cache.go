// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"sync"

	"github.com/luxfi/geth/common/lru"
)

// LRUCache is a read-through cache for immutable records: same Get interface
// as TTLCache but entries never expire, only fall out under capacity
// pressure.
type LRUCache[K comparable, V any] struct {
	mu    sync.RWMutex
	cache *lru.Cache[K, V]
}

// NewLRUCache creates an empty cache bounded to size entries
func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		cache: lru.NewCache[K, V](size),
	}
}

// Get returns the cached value for key, fetching on a miss. When invalidate
// is set the entry is cleared before fetching.
func (c *LRUCache[K, V]) Get(key K, fetch func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.mu.Lock()
		c.cache.Remove(key)
		c.mu.Unlock()
	} else {
		c.mu.RLock()
		value, ok := c.cache.Get(key)
		c.mu.RUnlock()
		if ok {
			return value, nil
		}
	}

	value, err := fetch(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.cache.Add(key, value)
	c.mu.Unlock()
	return value, nil
}

// Put stores a record directly, bypassing the fetch path
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, value)
}

// Peek returns the cached value without fetching on a miss
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Get(key)
}
