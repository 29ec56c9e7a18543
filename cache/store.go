package cache

import (
	"context"
	"time"
)

// Store is the key-value surface the caches run on: plain values with a
// TTL, string sets, and prefix deletion. Values are opaque bytes; a Codec
// turns them into Go values.
//
// Implementations must be safe for concurrent use. A missing key is never
// an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A ttl <= 0 uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every key starting with prefix and returns the
	// number of keys removed. Keys written while the scan runs may survive.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)

	Close() error
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)
