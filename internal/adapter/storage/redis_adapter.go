package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/scanops/scanstock/internal/port"
)

const patternScanBatch = 100

// RedisCache implements port.Cache on a shared Redis backend. A local
// singleflight group collapses process-local stampedes before they reach
// the network.
type RedisCache struct {
	client *redis.Client
	group  singleflight.Group
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, port.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", port.ErrCacheUnavailable, key, err)
	}
	return value, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %q: %v", port.ErrCacheUnavailable, key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del %q: %v", port.ErrCacheUnavailable, key, err)
	}
	return nil
}

func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, patternScanBatch).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("%w: del %q: %v", port.ErrCacheUnavailable, iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan %q: %v", port.ErrCacheUnavailable, pattern, err)
	}
	return nil
}

func (r *RedisCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	value, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incrby %q: %v", port.ErrCacheUnavailable, key, err)
	}
	return value, nil
}

func (r *RedisCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fill port.FillFunc) ([]byte, error) {
	value, err := r.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, port.ErrCacheMiss) {
		// Backend trouble degrades to a miss; the fill still serves the
		// caller from the source of truth.
		log.Printf("redis cache: read degraded: %v", err)
	}

	result, err, _ := r.group.Do(key, func() (any, error) {
		if value, err := r.Get(ctx, key); err == nil {
			return value, nil
		}

		value, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		if err := r.Set(ctx, key, value, ttl); err != nil {
			// Cache write failure must not fail the request.
			log.Printf("redis cache: populate %q failed: %v", key, err)
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", port.ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
