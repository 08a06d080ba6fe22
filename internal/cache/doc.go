// Package cache provides the bounded LRU cache that keeps compiled
// shader microcode in memory.
//
//	c := cache.New[idstring.Hash128, []byte](4096)
//	c.Set(key, code)
//	code, ok := c.Get(key)
//
// # Eviction
//
// A limit of 0 means unlimited. Otherwise inserting past the limit
// evicts the least recently used entries, one per insertion. An optional
// callback observes every eviction.
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
