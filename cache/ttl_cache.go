// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides the read-through caches used by the relayer:
// a TTL cache for values that go stale (committed checkpoints) and an LRU
// cache for immutable records (completed deliveries).
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type ttlItem[V any] struct {
	value   V
	fetched time.Time
}

// TTLCache is a read-through cache with per-key expiry and single-flight
// fetching: concurrent misses for the same key share one fetch.
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]ttlItem[V]
	ttl   time.Duration
	group singleflight.Group
}

// NewTTLCache creates an empty cache whose entries expire after ttl
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		items: make(map[K]ttlItem[V]),
		ttl:   ttl,
	}
}

// Get returns the cached value for key if it is still fresh, otherwise
// fetches it. When invalidate is set the entry is cleared before fetching
// rather than overwritten after, so no reader observes the stale value while
// the fetch is in flight; concurrent callers are deduplicated onto the same
// fetch and share its result.
func (c *TTLCache[K, V]) Get(key K, fetch func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
	} else {
		c.mu.RLock()
		item, ok := c.items[key]
		c.mu.RUnlock()
		if ok && time.Since(item.fetched) < c.ttl {
			return item.value, nil
		}
	}

	v, err, _ := c.group.Do(keyToString(key), func() (interface{}, error) {
		value, err := fetch(key)
		if err != nil {
			return *new(V), err
		}
		c.mu.Lock()
		c.items[key] = ttlItem[V]{value: value, fetched: time.Now()}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// keyToString supports both fmt.Stringer and primitive key types
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
