package cache

import (
	"io/fs"

	"github.com/opencontainers/go-digest"
)

// Cache provides digest-addressed file storage.
//
// File content is keyed by the digest recorded in its integrity metadata.
// Archive headers are keyed by HeaderKey of their source identifier.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns an fs.File for reading cached content.
	// Returns nil, false if content is not cached.
	// Each call returns a new file handle (safe for concurrent use).
	Get(key digest.Digest) (fs.File, bool)

	// Put stores content by reading from the provided fs.File.
	// The cache reads the file to completion; caller still owns/closes the file.
	Put(key digest.Digest, f fs.File) error

	// Delete removes cached content for the given key.
	// Implementations should treat missing entries as a no-op.
	Delete(key digest.Digest) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

// headerKeyPrefix separates header keys from content digests.
const headerKeyPrefix = "asar-header\x00"

// HeaderKey returns the cache key for the header of the archive identified
// by sourceID.
func HeaderKey(sourceID string) digest.Digest {
	return digest.FromString(headerKeyPrefix + sourceID)
}
