package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when a key is absent or logically expired.
var ErrCacheMiss = errors.New("cache: key not found")

// ErrCacheUnavailable wraps backend failures. The cache is an
// optimization: callers fall through to the durable store on this error
// instead of failing the request.
var ErrCacheUnavailable = errors.New("cache: backend unavailable")

// FillFunc loads the value for a key on a cache miss.
type FillFunc func(ctx context.Context) ([]byte, error)

type Cache interface {
	// Get returns the value stored at key. A logically expired entry
	// behaves as a miss. Never blocks waiting for a fill.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL, unconditionally
	// overwriting any existing entry. Zero TTL means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key if present. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes every key matching the glob pattern, where
	// '*' matches any run of characters. Each key's removal is atomic;
	// the sweep as a whole is not a single transaction.
	DeleteByPattern(ctx context.Context, pattern string) error

	// Increment atomically adds delta to the counter at key, creating it
	// at zero if absent, and returns the new value. Race-free under
	// concurrent callers.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// GetOrSet returns the cached value at key, or runs fill to compute
	// and store it. Concurrent callers missing on the same key share a
	// single fill invocation and its result. A failed fill caches
	// nothing; the next miss re-attempts.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fill FillFunc) ([]byte, error)

	// Ping verifies the cache backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the cache.
	Close() error
}
