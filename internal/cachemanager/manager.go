// Package cachemanager provides a generic TTL cache interface with an
// in-memory implementation and a read-through wrapper, used to cache
// substring search results between registry mutations.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a generic TTL key/value cache.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}
