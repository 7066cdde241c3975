// Package cache stores fetched layer payloads, joined datasets and camera
// parameters so that re-initializing a scene does not hit the data server
// again.
//
// Three backends implement [Cache]:
//   - [FileCache] for the CLI (one JSON entry per key under a directory)
//   - [RedisCache] for the long-running server
//   - [NullCache] when caching is disabled
//
// Keys are produced by a [Keyer] so that deployments serving several data
// sources can isolate their namespaces with [NewScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Default time-to-live for cached entries.
const (
	TTLLayer  = 24 * time.Hour
	TTLJoined = 24 * time.Hour
	TTLCamera = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the cached bytes and true on a hit.
	// A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
