package repository

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// CacheStats counts lookups against one cache.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64 // capacity evictions and invalidations
	Len       int
}

// lruCache is a bounded least-recently-used map with hit/miss counters. It
// has no locking of its own; CatalogRepo guards every cache with one mutex.
type lruCache[K comparable, V any] struct {
	lru   *simplelru.LRU[K, V]
	stats CacheStats
}

func newLRUCache[K comparable, V any](size int) *lruCache[K, V] {
	c := &lruCache[K, V]{}
	lru, err := simplelru.NewLRU[K, V](size, func(K, V) { c.stats.Evictions++ })
	if err != nil {
		// Only a non-positive size fails, and callers normalise it first.
		panic(err)
	}
	c.lru = lru
	return c
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return v, ok
}

// contains checks for key without touching recency or counters.
func (c *lruCache[K, V]) contains(key K) bool { return c.lru.Contains(key) }

// peek returns the value for key without touching recency or counters.
func (c *lruCache[K, V]) peek(key K) (V, bool) { return c.lru.Peek(key) }

func (c *lruCache[K, V]) put(key K, v V) { c.lru.Add(key, v) }

func (c *lruCache[K, V]) remove(key K) { c.lru.Remove(key) }

func (c *lruCache[K, V]) purge() { c.lru.Purge() }

func (c *lruCache[K, V]) snapshot() CacheStats {
	s := c.stats
	s.Len = c.lru.Len()
	return s
}
