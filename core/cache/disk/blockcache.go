package disk

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	asarcache "github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/core/internal/asartype"
)

// BlockCache provides a disk-backed block cache for range sources.
//
// Blocks are keyed by the digest of (source ID, block size, block index) and
// stored as individual files sharded by key prefix. The cache is safe for
// concurrent use; concurrent misses on one block share a single fetch.
type BlockCache struct {
	store
	fetchGroup singleflight.Group
}

// BlockCacheOption configures a disk-backed block cache.
type BlockCacheOption func(*BlockCache)

// WithBlockMaxBytes sets the maximum size in bytes for the block cache.
// Use 0 to disable the limit.
func WithBlockMaxBytes(n int64) BlockCacheOption {
	return func(c *BlockCache) {
		c.maxBytes = n
	}
}

// WithBlockShardPrefixLen sets the number of digest characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithBlockShardPrefixLen(n int) BlockCacheOption {
	return func(c *BlockCache) {
		c.shardPrefixLen = n
	}
}

// WithBlockDirPerm sets the directory permissions used for cache directories.
func WithBlockDirPerm(mode os.FileMode) BlockCacheOption {
	return func(c *BlockCache) {
		c.dirPerm = mode
	}
}

// NewBlockCache creates a disk-backed block cache rooted at dir.
func NewBlockCache(dir string, opts ...BlockCacheOption) (*BlockCache, error) {
	c := &BlockCache{store: newStore(dir)}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.init("block cache"); err != nil {
		return nil, err
	}
	return c, nil
}

// Wrap returns a Source that serves ranges from cached blocks.
func (c *BlockCache) Wrap(src asarcache.Source, opts ...asarcache.WrapOption) (asarcache.Source, error) {
	if src == nil {
		return nil, errors.New("block cache: source is nil")
	}
	cfg := asarcache.DefaultWrapConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BlockSize <= 0 {
		return nil, errors.New("block cache: block size must be > 0")
	}
	if cfg.MaxBlocksPerRead < 0 {
		return nil, errors.New("block cache: max blocks per read must be >= 0")
	}
	sourceID := src.SourceID()
	if sourceID == "" {
		return nil, errors.New("block cache: source id is empty")
	}
	size := int64(-1)
	if sz, ok := src.(asarcache.Sizer); ok {
		size = sz.Size()
	}
	return &cachedSource{
		src:              src,
		cache:            c,
		sourceID:         sourceID,
		size:             size,
		blockSize:        cfg.BlockSize,
		maxBlocksPerRead: cfg.MaxBlocksPerRead,
	}, nil
}

// cachedSource wraps a range source with block-level caching.
type cachedSource struct {
	src              asarcache.Source
	cache            *BlockCache
	sourceID         string
	size             int64 // total source size, -1 if unknown
	blockSize        int64
	maxBlocksPerRead int
}

// FetchRange assembles the range from cached blocks, fetching any missing
// block from the wrapped source. The result is always a buffer chunk.
func (s *cachedSource) FetchRange(ctx context.Context, off, length int64) (asartype.Chunk, error) {
	if off < 0 || length < 0 {
		return asartype.Chunk{}, fmt.Errorf("block cache: invalid range offset %d length %d", off, length)
	}
	if length == 0 {
		return asartype.BufferChunk(nil), nil
	}
	end := off + length
	if s.size >= 0 && end > s.size {
		return asartype.Chunk{}, fmt.Errorf("%w: range [%d, %d) exceeds source size %d", asartype.ErrIncompleteRead, off, end, s.size)
	}

	startBlock := off / s.blockSize
	endBlock := (end - 1) / s.blockSize
	if s.maxBlocksPerRead > 0 && endBlock-startBlock+1 > int64(s.maxBlocksPerRead) {
		return s.src.FetchRange(ctx, off, length)
	}
	if s.size < 0 {
		// Without a known size only whole blocks can be requested safely.
		// A range reaching into a block that may extend past the end of
		// the source goes straight to it.
		return s.fetchUnsized(ctx, off, length, startBlock, endBlock)
	}

	out := make([]byte, 0, length)
	for blockIndex := startBlock; blockIndex <= endBlock; blockIndex++ {
		blockStart := blockIndex * s.blockSize
		blockLen := min(s.blockSize, s.size-blockStart)
		data, err := s.cache.getBlock(s.sourceID, s.blockSize, blockIndex, blockLen, func() ([]byte, error) {
			return s.fetchBlock(ctx, blockStart, blockLen)
		})
		if err != nil {
			return asartype.Chunk{}, err
		}
		out = appendOverlap(out, data, blockStart, off, end)
	}
	return asartype.BufferChunk(out), nil
}

func (s *cachedSource) fetchUnsized(ctx context.Context, off, length, startBlock, endBlock int64) (asartype.Chunk, error) {
	end := off + length
	out := make([]byte, 0, length)
	for blockIndex := startBlock; blockIndex <= endBlock; blockIndex++ {
		blockStart := blockIndex * s.blockSize
		data, err := s.cache.getBlock(s.sourceID, s.blockSize, blockIndex, s.blockSize, func() ([]byte, error) {
			return s.fetchBlock(ctx, blockStart, s.blockSize)
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return asartype.Chunk{}, ctxErr
			}
			return s.src.FetchRange(ctx, off, length)
		}
		out = appendOverlap(out, data, blockStart, off, end)
	}
	return asartype.BufferChunk(out), nil
}

// appendOverlap appends the part of block (starting at blockStart) that
// falls inside [off, end).
func appendOverlap(out, block []byte, blockStart, off, end int64) []byte {
	from := max(off, blockStart) - blockStart
	to := min(end, blockStart+int64(len(block))) - blockStart
	if to <= from {
		return out
	}
	return append(out, block[from:to]...)
}

func (s *cachedSource) fetchBlock(ctx context.Context, off, length int64) ([]byte, error) {
	chunk, err := s.src.FetchRange(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return chunk.ReadExact(length)
}

// SourceID returns the wrapped source's identifier.
func (s *cachedSource) SourceID() string {
	return s.sourceID
}

func (c *BlockCache) getBlock(sourceID string, blockSize, blockIndex, blockLen int64, fetch func() ([]byte, error)) ([]byte, error) {
	key := blockKey(sourceID, blockSize, blockIndex)
	result, err, _ := c.fetchGroup.Do(key.String(), func() (any, error) {
		path := c.entryPath(c.dir, key.Encoded())
		data, err := os.ReadFile(path) //nolint:gosec // path is derived from a digest
		switch {
		case err == nil && int64(len(data)) == blockLen:
			return data, nil
		case err == nil:
			// Truncated or stale block.
			_ = c.remove(path) //nolint:errcheck // refetched below
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}

		data, err = fetch()
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			_ = c.commit(path, bytes.NewReader(data)) //nolint:errcheck // cache write is best-effort
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// blockKey derives the key of one block from the source identity, the block
// size, and the block index.
func blockKey(sourceID string, blockSize, blockIndex int64) digest.Digest {
	digester := digest.SHA256.Digester()
	h := digester.Hash()
	_, _ = h.Write([]byte(sourceID)) //nolint:errcheck // hash writes never fail

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(blockSize))  //nolint:gosec // blockSize validated > 0
	binary.BigEndian.PutUint64(buf[8:], uint64(blockIndex)) //nolint:gosec // blockIndex always >= 0
	_, _ = h.Write(buf[:])                                  //nolint:errcheck // hash writes never fail

	return digester.Digest()
}

// Interface compliance.
var _ asarcache.BlockCache = (*BlockCache)(nil)
