package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scanops/scanstock/internal/port"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is the in-process implementation of port.Cache. Reads treat
// logically expired entries as misses; a janitor goroutine sweeps them out
// in the background until Close.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	group   singleflight.Group

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache constructs the cache and starts its janitor when
// sweepInterval is positive. Callers own the lifecycle and must Close.
func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.janitor(sweepInterval)
	}
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired(time.Now()) {
		return nil, port.ErrCacheMiss
	}

	// Copy so callers cannot mutate the cached bytes.
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if matchKey(pattern, key) {
			delete(c.entries, key)
		}
	}
	return nil
}

// matchKey reports whether key matches pattern. '*' spans any run of
// characters, the same glob Redis applies in SCAN MATCH; keys are opaque
// strings, so a '*' must cross '/' and every other byte.
func matchKey(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}

	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(key, part)
		if idx < 0 {
			return false
		}
		key = key[idx+len(part):]
	}
	return strings.HasSuffix(key, last)
}

func (c *MemoryCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current int64
	if entry, ok := c.entries[key]; ok && !entry.expired(time.Now()) {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("increment %q: value is not an integer", key)
		}
		current = parsed
	}

	current += delta
	c.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(current, 10))}
	return current, nil
}

func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fill port.FillFunc) ([]byte, error) {
	if value, err := c.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		// A concurrent filler may have stored the value between our miss
		// and winning the flight.
		if value, err := c.Get(ctx, key); err == nil {
			return value, nil
		}

		value, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	// Waiters joining the flight share the winner's slice; hand each
	// caller its own copy, same as the Get path.
	shared := value.([]byte)
	out := make([]byte, len(shared))
	copy(out, shared)
	return out, nil
}

func (c *MemoryCache) Ping(ctx context.Context) error {
	select {
	case <-c.done:
		return errors.New("memory cache closed")
	default:
		return nil
	}
}

func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, entry := range c.entries {
				if entry.expired(now) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
