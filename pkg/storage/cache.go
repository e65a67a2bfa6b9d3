package storage

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// CountCache memoises the number of measured points per project
type CountCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCountCache creates a new count cache whose entries live for ttl
func NewCountCache(ttl time.Duration) (*CountCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 12,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create count cache: %w", err)
	}
	return &CountCache{cache: cache, ttl: ttl}, nil
}

// Get returns the cached count of a project
func (c *CountCache) Get(project string) (int64, bool) {
	v, ok := c.cache.Get(project)
	if !ok {
		return 0, false
	}
	count, ok := v.(int64)
	return count, ok
}

// Put stores the count of a project. The write becomes visible once the
// cache has processed its buffers.
func (c *CountCache) Put(project string, count int64) {
	c.cache.SetWithTTL(project, count, 1, c.ttl)
	c.cache.Wait()
}

// Invalidate drops the cached count of a project
func (c *CountCache) Invalidate(project string) {
	c.cache.Del(project)
}

// Close releases the cache
func (c *CountCache) Close() {
	c.cache.Close()
}
