// Package cache derives content-addressed artifact keys and provides optional
// byte stores that mirror rendered artifacts across builds.
//
// The primary artifact cache is the output directory itself: a rendered file
// named after its [Keyer.ArtifactKey] digest is reused whenever it exists.
// A [Cache] is a second level consulted on a local miss before the external
// renderer is spawned, so identical diagrams rendered by another project
// ([FileCache]) or another machine ([RedisCache]) are copied instead of
// re-rendered.
//
// # Keys
//
// Keys are SHA-256 digests over the JSON encoding of their inputs. Two
// requests with identical diagram text, render options and relevant global
// configuration always map to the same key; nothing time-based participates.
package cache

import (
	"context"
	"time"
)

// TTLArtifact is how long mirrored artifacts are kept. Artifacts are immutable
// for a given key, so the TTL only bounds storage growth.
const TTLArtifact = 30 * 24 * time.Hour

// Cache is a byte store keyed by artifact key.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored bytes and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}
