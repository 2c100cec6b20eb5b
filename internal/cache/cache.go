// Package cache provides an in-process TTL cache backed by ristretto.
package cache

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache stores string values by string key with a per-entry TTL. Writes are
// applied asynchronously; call Wait when a following read must observe them.
type Cache struct {
	c   *ristretto.Cache[string, string]
	ttl time.Duration
}

// New creates a cache bounded to maxBytes of values, expiring entries after
// ttl.
func New(maxBytes int64, ttl time.Duration) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxBytes / 100 * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Get returns the cached value for key.
func (c *Cache) Get(key string) (string, bool) {
	return c.c.Get(key)
}

// Set stores value under key. Cost is the value length in bytes.
func (c *Cache) Set(key, value string) {
	c.c.SetWithTTL(key, value, int64(len(value)), c.ttl)
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.c.Del(key)
}

// Wait blocks until buffered writes are applied.
func (c *Cache) Wait() {
	c.c.Wait()
}

// Close releases the cache's goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
