package cache

import (
	"context"
	"time"
)

// StatsCache holds short-lived serialized query results so repeated stats
// requests do not re-run aggregations against the store. It is a pure
// optimization: a miss or a cache failure always falls through to the
// repositories.
type StatsCache interface {
	// Get returns the cached payload for key, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores payload under key for ttl.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
	// Close releases cache resources.
	Close() error
}
