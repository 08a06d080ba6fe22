package cache

import (
	"sync"
	"sync/atomic"
)

// Cache is a generic thread-safe LRU cache with a soft limit.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*lruNode[K, V]
	order   lruList[K, V]
	limit   int
	onEvict func(K, V)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding at most limit entries. A limit of 0 means
// unlimited.
func New[K comparable, V any](limit int) *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]*lruNode[K, V]), limit: max(limit, 0)}
}

// OnEvict installs fn, called under the cache lock for every entry
// dropped to stay under the limit. fn must not call back into the cache.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the value for key and marks it recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	c.order.MoveToFront(node)
	return node.value, true
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores value under key, evicting the oldest entry if the cache
// grows past its limit.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		node.value = value
		c.order.MoveToFront(node)
		return
	}
	c.entries[key] = c.order.PushFront(key, value)
	if c.limit > 0 && c.order.Len() > c.limit {
		c.evictOldest()
	}
}

// GetOrCreate returns the cached value or stores the result of create.
// create runs under the cache lock, so concurrent callers never create
// the same key twice.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		c.hits.Add(1)
		c.order.MoveToFront(node)
		return node.value
	}
	c.misses.Add(1)
	value := create()
	c.entries[key] = c.order.PushFront(key, value)
	if c.limit > 0 && c.order.Len() > c.limit {
		c.evictOldest()
	}
	return value
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.Remove(node)
	delete(c.entries, key)
	return true
}

// Clear removes all entries. Eviction callbacks are not called.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[K]*lruNode[K, V])
	c.order.Clear()
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Range calls fn for every entry from most to least recently used until
// fn returns false. The cache is locked during the walk.
func (c *Cache[K, V]) Range(fn func(K, V) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := c.order.head; n != nil; n = n.next {
		if !fn(n.key, n.value) {
			return
		}
	}
}

// Capacity returns the soft limit.
func (c *Cache[K, V]) Capacity() int { return c.limit }

// Stats returns a snapshot of the counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()

	s := Stats{
		Len:       n,
		Capacity:  c.limit,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// evictOldest drops least recently used entries until the cache is at
// its limit. Caller must hold c.mu.
func (c *Cache[K, V]) evictOldest() {
	for c.order.Len() > c.limit {
		node := c.order.RemoveOldest()
		delete(c.entries, node.key)
		c.evictions.Add(1)
		if c.onEvict != nil {
			c.onEvict(node.key, node.value)
		}
	}
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
}
