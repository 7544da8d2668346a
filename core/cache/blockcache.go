package cache

import "github.com/meigma/asar/core/internal/asartype"

// Source is a range source with a stable identity. The identity is part of
// every block key, so it must be unique to the source's content.
type Source interface {
	asartype.RangeSource
	asartype.SourceIdentifier
}

// Sizer is implemented by sources that know their total length. Block
// caches use it to size the final block; without it, ranges touching a
// block that extends past the end are fetched directly.
type Sizer interface {
	Size() int64
}

// BlockCache wraps range sources with block-level caching.
//
// Block caching is most effective for scattered reads against remote
// sources. Large sequential reads bypass the cache once they span more
// than MaxBlocksPerRead blocks.
type BlockCache interface {
	// Wrap returns a Source that serves ranges from cached fixed-size
	// blocks, fetching missing blocks from src.
	Wrap(src Source, opts ...WrapOption) (Source, error)

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}

// DefaultBlockSize is the default block size used by block caches.
const DefaultBlockSize int64 = 64 << 10

// DefaultMaxBlocksPerRead caps cached blocks per fetch to avoid caching
// large sequential reads.
const DefaultMaxBlocksPerRead = 4

// WrapConfig controls block cache wrapping behavior.
type WrapConfig struct {
	// BlockSize is the size in bytes of each cached block.
	BlockSize int64

	// MaxBlocksPerRead is the maximum number of blocks that will be cached
	// for a single fetch. Fetches spanning more blocks go straight to the
	// source. Use 0 to disable the limit.
	MaxBlocksPerRead int
}

// DefaultWrapConfig returns the default block cache configuration.
func DefaultWrapConfig() WrapConfig {
	return WrapConfig{
		BlockSize:        DefaultBlockSize,
		MaxBlocksPerRead: DefaultMaxBlocksPerRead,
	}
}

// WrapOption configures block cache wrapping behavior.
type WrapOption func(*WrapConfig)

// WithBlockSize sets the block size used for caching.
func WithBlockSize(n int64) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.BlockSize = n
	}
}

// WithMaxBlocksPerRead bypasses caching when a fetch spans more than n blocks.
// Values <= 0 disable the limit.
func WithMaxBlocksPerRead(n int) WrapOption {
	return func(cfg *WrapConfig) {
		cfg.MaxBlocksPerRead = n
	}
}
