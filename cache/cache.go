// Package cache provides a minimal concurrency-safe map used as the in-memory
// registry of live transcode jobs, keyed by video ID.
package cache

import (
	"sync"
)

type Cache[T any] struct {
	entries map[string]T
	mutex   sync.RWMutex
}

func New[T any]() *Cache[T] {
	return &Cache[T]{
		entries: make(map[string]T),
	}
}

func (c *Cache[T]) Get(key string) (T, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache[T]) Store(key string, value T) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = value
}

// StoreIfAbsent stores value under key only when no entry exists and reports
// whether it stored. Used to make duplicate job detection atomic.
func (c *Cache[T]) StoreIfAbsent(key string, value T) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = value
	return true
}

func (c *Cache[T]) Remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, key)
}

func (c *Cache[T]) Keys() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache[T]) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}
