package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// StatsCache implements the cache.StatsCache interface using Redis. Useful
// when several read replicas of the stats API share one cache, even though
// the presence authority itself stays single-process.
type StatsCache struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewStatsCache creates a new [StatsCache] instance.
func NewStatsCache(client *redis.Client, prefix string) *StatsCache {
	return &StatsCache{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given cache key.
func (r *StatsCache) redisKey(key string) string {
	return fmt.Sprintf("%s:stats:%s", r.prefix, key)
}

// Get retrieves a cached payload. Redis errors are treated as misses.
func (r *StatsCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Redis stats cache read failed")
		}
		return nil, false
	}
	return payload, true
}

// Set stores payload under key for ttl. Failures are logged and swallowed;
// the cache is best-effort.
func (r *StatsCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, r.redisKey(key), payload, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis stats cache write failed")
	}
}

// Close closes the underlying Redis client.
func (r *StatsCache) Close() error {
	return r.client.Close()
}
