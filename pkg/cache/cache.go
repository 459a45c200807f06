// Package cache provides the byte-level caches used to memoise upstream
// responses for the lifetime of a process.
//
// Two implementations are available:
//
//   - [MemoryCache]: a bounded LRU with per-entry expiry
//   - [NullCache]: stores nothing, every lookup misses
//
// Nothing is written to disk; a new process always starts cold.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under string keys.
//
// Implementations must be safe for concurrent use. A ttl <= 0 passed to Set
// means the entry never expires on its own, though it may still be evicted.
type Cache interface {
	// Get returns the stored value and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
