package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-core/pkg/logger"
)

func newCache(t *testing.T) (*RedisAvailabilityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAvailabilityCache(client, time.Minute, logger.Nop()), mr
}

func TestRedisAvailabilityCache_SetGetInvalidate(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "p-1", "wh-1")
	assert.False(t, ok)

	c.Set(ctx, "p-1", "wh-1", 7)
	n, ok := c.Get(ctx, "p-1", "wh-1")
	require.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = c.Get(ctx, "p-1", "wh-2")
	assert.False(t, ok, "la clave incluye el almacén")

	c.Invalidate(ctx, "p-1", "wh-1")
	_, ok = c.Get(ctx, "p-1", "wh-1")
	assert.False(t, ok)
}

func TestRedisAvailabilityCache_Expira(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	c.Set(ctx, "p-1", "wh-1", 3)
	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "p-1", "wh-1")
	assert.False(t, ok)
}

func TestRedisAvailabilityCache_RedisCaidoEsFalloDeCache(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	mr.Close()

	assert.NotPanics(t, func() {
		c.Set(ctx, "p-1", "wh-1", 3)
		c.Invalidate(ctx, "p-1", "wh-1")
	})
	_, ok := c.Get(ctx, "p-1", "wh-1")
	assert.False(t, ok)
}
