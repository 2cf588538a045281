// Package cache implementa la caché consultiva de disponibilidad sobre Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-core/internal/application/inventory"
	"github.com/jhoicas/inventario-core/pkg/logger"
)

var _ inventory.AvailabilityCache = (*RedisAvailabilityCache)(nil)

const defaultTTL = 30 * time.Second

// RedisAvailabilityCache guarda existencias por (producto, almacén) solo para mostrarlas.
// Los errores de Redis se registran y se tratan como fallo de caché: nunca cortan una operación.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// NewRedisAvailabilityCache usa un cliente existente; el llamador es dueño de cerrarlo.
func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisAvailabilityCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisAvailabilityCache{client: client, ttl: ttl, prefix: "inventory:available", log: log.Component("availability_cache")}
}

// Connect abre un cliente y verifica la conexión.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (c *RedisAvailabilityCache) key(productID, warehouseID string) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, warehouseID, productID)
}

func (c *RedisAvailabilityCache) Get(ctx context.Context, productID, warehouseID string) (int, bool) {
	n, err := c.client.Get(ctx, c.key(productID, warehouseID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("product_id", productID).Str("warehouse_id", warehouseID).Msg("cache get")
		return 0, false
	}
	return n, true
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, productID, warehouseID string, qty int) {
	if err := c.client.Set(ctx, c.key(productID, warehouseID), qty, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("product_id", productID).Str("warehouse_id", warehouseID).Msg("cache set")
	}
}

func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, productID, warehouseID string) {
	if err := c.client.Del(ctx, c.key(productID, warehouseID)).Err(); err != nil {
		c.log.Warn().Err(err).Str("product_id", productID).Str("warehouse_id", warehouseID).Msg("cache invalidate")
	}
}
