package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gymdir/internal/adapters/observability"
	"gymdir/internal/domain"
)

// Cache is the redis-backed domain.Cache. Values are stored as JSON under
// a per-deployment key prefix.
type Cache struct {
	c      *redis.Client
	prefix string
}

var _ domain.Cache = (*Cache)(nil)

func New(addr, pass string, db int) *Cache {
	return NewFromClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewFromClient(c *redis.Client) *Cache {
	return &Cache{c: c, prefix: "gymdir:"}
}

func (r *Cache) Ping(ctx context.Context) error {
	if err := r.c.Ping(ctx).Err(); err != nil {
		return domain.NewInfraError("redis ping", err)
	}
	return nil
}

func (r *Cache) Close() error { return r.c.Close() }

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, domain.NewInfraError("redis get", err)
	}
	observability.ObserveCache("redis", "hit")
	if err := json.Unmarshal(v, dst); err != nil {
		// a stale shape is a miss, not a failure
		_ = r.c.Del(ctx, r.prefix+key).Err()
		return false, nil
	}
	return true, nil
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	observability.ObserveCache("redis", "set")
	if err := r.c.Set(ctx, r.prefix+key, b, time.Duration(ttlSec)*time.Second).Err(); err != nil {
		return domain.NewInfraError("redis set", err)
	}
	return nil
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	if err := r.c.Del(ctx, r.prefix+key).Err(); err != nil {
		return domain.NewInfraError("redis del", err)
	}
	return nil
}
