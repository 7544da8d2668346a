// Package disk provides disk-backed cache implementations.
package disk

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"

	asarcache "github.com/meigma/asar/core/cache"
)

// Cache implements cache.Cache using the local filesystem.
//
// Each entry lives at <dir>/<algorithm>/<shard>/<encoded digest>, so
// content hashed with different algorithms never collides. The cache is
// safe for concurrent use and across processes sharing dir.
type Cache struct {
	store
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of digest characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum cache size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{store: newStore(dir)}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.init("cache"); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns an fs.File for reading cached content.
// Returns nil, false if the content is not cached.
func (c *Cache) Get(key digest.Digest) (fs.File, bool) {
	path, err := c.path(key)
	if err != nil {
		return nil, false
	}
	f, err := os.Open(path) //nolint:gosec // path is derived from a validated digest
	if err != nil {
		return nil, false
	}
	return f, true
}

// Put stores the content of f under key. The cache reads f to completion;
// the caller still owns and closes it.
func (c *Cache) Put(key digest.Digest, f fs.File) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	return c.commit(path, f)
}

// Delete removes cached content for the given key.
func (c *Cache) Delete(key digest.Digest) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	return c.remove(path)
}

func (c *Cache) path(key digest.Digest) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("cache key %q: %w", key, err)
	}
	return c.entryPath(filepath.Join(c.dir, key.Algorithm().String()), key.Encoded()), nil
}

// Interface compliance.
var _ asarcache.Cache = (*Cache)(nil)
