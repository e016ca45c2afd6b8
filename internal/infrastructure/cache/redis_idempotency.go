package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/pos-stock/internal/application/order"
	"github.com/jhoicas/pos-stock/pkg/config"
)

const checkoutKeyPrefix = "pos:checkout:"

var _ order.IdempotencyGuard = (*RedisIdempotency)(nil)

// RedisIdempotency reserva claves de pedido con SET NX + TTL.
type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient abre el cliente y verifica la conexión.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRedisIdempotency construye el guard. ttl <= 0 usa 24h.
func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotency{client: client, ttl: ttl}
}

// Acquire true si la clave no existía y quedó reservada.
func (g *RedisIdempotency) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, checkoutKeyPrefix+key, time.Now().Unix(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reservar clave de idempotencia: %w", err)
	}
	return ok, nil
}

// Release borra la clave.
func (g *RedisIdempotency) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, checkoutKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("liberar clave de idempotencia: %w", err)
	}
	return nil
}
