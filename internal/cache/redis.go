package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct{ rdb *redis.Client }

// NewRedis wraps an established Redis client.
func NewRedis(rdb *redis.Client) Cache {
	return &redisCache{rdb: rdb}
}

// Dial connects to Redis and verifies the connection with a short ping.
// Returns nil on failure so callers can degrade to the in-process cache.
func Dial(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	_ = r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = r.rdb.Del(ctx, keys...).Err()
}
