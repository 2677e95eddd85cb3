// Package cache provides pluggable caching backends for expensive
// pipeline stages. Street graphs and network plans are cached by
// content hash, so identical inputs short-circuit recomputation.
package cache

import (
	"context"
	"time"
)

// Default TTLs per cached stage.
const (
	// TTLGraph is how long a built street graph stays cached. Street
	// extracts change rarely, so graphs live for a week.
	TTLGraph = 7 * 24 * time.Hour

	// TTLPlan is how long a computed network plan stays cached.
	TTLPlan = 24 * time.Hour
)

// Cache is the storage contract shared by all backends.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
