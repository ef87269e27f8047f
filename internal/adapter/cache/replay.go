package cache

import (
	"context"
	"time"

	"github.com/DavidPARK0417/marketlink-sub003/internal/adapter/config"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/domain"
	"github.com/DavidPARK0417/marketlink-sub003/internal/core/port"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "confirm:"

// ReplayCache keeps (order, payment reference) -> settlement id in
// Redis so duplicate deliveries skip the order read on the hot path.
// Entries outlive the gateway's multi-day retry window via TTL.
type ReplayCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewReplayCache(conf *config.Redis) (*ReplayCache, error) {
	rdb := redis.NewClient(&redis.Options{Addr: conf.Addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &ReplayCache{rdb: rdb, ttl: conf.TTL}, nil
}

func (c *ReplayCache) Remember(ctx context.Context, number domain.OrderNumber, ref string, settlementID string) error {
	return c.rdb.Set(ctx, cacheKey(number, ref), settlementID, c.ttl).Err()
}

func (c *ReplayCache) Recall(ctx context.Context, number domain.OrderNumber, ref string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(number, ref)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func cacheKey(number domain.OrderNumber, ref string) string {
	return keyPrefix + string(number) + ":" + ref
}

var _ port.ReplayCache = (*ReplayCache)(nil)
