package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsCache_SetGet(t *testing.T) {
	c := NewMemoryStatsCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "daily-stats:30", []byte(`[{"day":"2025-06-01"}]`), time.Minute)
	payload, ok := c.Get(ctx, "daily-stats:30")
	require.True(t, ok)
	assert.Equal(t, `[{"day":"2025-06-01"}]`, string(payload))
}

func TestMemoryStatsCache_Expires(t *testing.T) {
	c := NewMemoryStatsCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	c.Set(ctx, "short", []byte("x"), 20*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "short")
		return !ok
	}, time.Second, 10*time.Millisecond)
}
