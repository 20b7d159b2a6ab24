package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStatsCache implements StatsCache using ttlcache.
type MemoryStatsCache struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryStatsCache creates a new in-memory stats cache with automatic
// expiration.
//
//nolint:ireturn
func NewMemoryStatsCache(defaultTTL time.Duration) StatsCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, []byte](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)

	// Start the cleanup process
	go cache.Start()

	return &MemoryStatsCache{
		cache: cache,
	}
}

// Get implements StatsCache.Get.
func (c *MemoryStatsCache) Get(_ context.Context, key string) ([]byte, bool) {
	item := c.cache.Get(key)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// Set implements StatsCache.Set.
func (c *MemoryStatsCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) {
	c.cache.Set(key, payload, ttl)
}

// Close stops the cleanup goroutine.
func (c *MemoryStatsCache) Close() error {
	c.cache.Stop()

	return nil
}
