// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCache(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, uint64](50 * time.Millisecond)
	fetches := 0
	fetch := func(string) (uint64, error) {
		fetches++
		return 7, nil
	}

	v, err := cache.Get("route", fetch, false)
	require.NoError(err)
	require.Equal(uint64(7), v)
	require.Equal(1, fetches)

	// Fresh hit, no fetch
	_, err = cache.Get("route", fetch, false)
	require.NoError(err)
	require.Equal(1, fetches)

	// Explicit invalidation refetches
	_, err = cache.Get("route", fetch, true)
	require.NoError(err)
	require.Equal(2, fetches)

	// Expiry refetches
	time.Sleep(60 * time.Millisecond)
	_, err = cache.Get("route", fetch, false)
	require.NoError(err)
	require.Equal(3, fetches)
}

func TestTTLCacheFetchError(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, uint64](time.Minute)
	fetchErr := errors.New("store unavailable")
	_, err := cache.Get("route", func(string) (uint64, error) {
		return 0, fetchErr
	}, false)
	require.ErrorIs(err, fetchErr)

	// Errors are not cached
	v, err := cache.Get("route", func(string) (uint64, error) {
		return 3, nil
	}, false)
	require.NoError(err)
	require.Equal(uint64(3), v)
}

func TestTTLCacheSingleFlight(t *testing.T) {
	require := require.New(t)

	cache := NewTTLCache[string, int](time.Minute)
	var (
		mu      sync.Mutex
		fetches int
	)
	release := make(chan struct{})
	fetch := func(string) (int, error) {
		mu.Lock()
		fetches++
		mu.Unlock()
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.Get("key", fetch, false)
			require.NoError(err)
			require.Equal(1, v)
		}()
	}
	// Give the goroutines a chance to pile onto the same flight
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(1, fetches)
}

func TestLRUCache(t *testing.T) {
	require := require.New(t)

	cache := NewLRUCache[string, string](2)
	fetches := 0
	fetch := func(k string) (string, error) {
		fetches++
		return "v-" + k, nil
	}

	v, err := cache.Get("a", fetch, false)
	require.NoError(err)
	require.Equal("v-a", v)

	// Immutable record, no refetch
	_, err = cache.Get("a", fetch, false)
	require.NoError(err)
	require.Equal(1, fetches)

	cache.Put("b", "direct")
	v, ok := cache.Peek("b")
	require.True(ok)
	require.Equal("direct", v)

	// Capacity 2: inserting a third evicts the least recently used
	_, err = cache.Get("c", fetch, false)
	require.NoError(err)
	_, err = cache.Get("a", fetch, false)
	require.NoError(err)
	require.Equal(3, fetches)
}
