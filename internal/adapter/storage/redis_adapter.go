package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// SetStock writes all totals in one MULTI/EXEC so readers never see a move
// half-published.
func (r *RedisAdapter) SetStock(ctx context.Context, stock map[string]uint32) error {
	if len(stock) == 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, qty := range stock {
			pipe.Set(ctx, stockKeyPrefix+name, qty, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish stock: %w", err)
	}
	return nil
}

func (r *RedisAdapter) GetStock(ctx context.Context, name string) (uint32, bool, error) {
	qty, err := r.client.Get(ctx, stockKeyPrefix+name).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read stock %q: %w", name, err)
	}
	return uint32(qty), true, nil
}
