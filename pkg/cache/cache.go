// Package cache provides pluggable byte caches for registry metadata.
//
// Three backends are available:
//   - FileCache: file-based storage under the user's cache directory, for
//     normal CLI usage
//   - RedisCache: Redis-backed storage for shared environments (e.g. CI
//     runners auditing many projects against the same registry data)
//   - NullCache: a no-op cache for --no-cache runs and tests
//
// Entries carry a TTL; expired entries are treated as misses and removed
// lazily on read.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque byte values with per-entry expiration.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get retrieves a value. The second return value reports whether the
	// key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
