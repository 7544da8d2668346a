package asar

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/core/internal/header"
	"github.com/meigma/asar/core/internal/index"
	"github.com/meigma/asar/core/internal/sizing"
)

// cachedHeader returns the header stored for sourceID, if any. Entries that
// fail to decode are deleted.
func (r *Reader) cachedHeader(sourceID string) (*loadedHeader, bool) {
	if r.cache == nil || sourceID == "" {
		return nil, false
	}
	key := cache.HeaderKey(sourceID)
	f, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	defer f.Close()

	limit := int64(header.PrefixSize) + 1<<32
	if r.maxHeaderSize > 0 {
		limit = r.maxHeaderSize
	}
	data, err := sizing.ReadAllWithLimit(f, limit, ErrHeaderTooLarge)
	if err == nil {
		var root *index.Node
		if root, err = header.Decode(data); err == nil {
			return &loadedHeader{root: root, size: int64(len(data))}, true
		}
	}
	r.log().Warn("discarding cached header", "source", sourceID, "error", err)
	_ = r.cache.Delete(key) //nolint:errcheck // best-effort cleanup of a corrupt entry
	return nil, false
}

// storeHeader caches the raw header bytes for sourceID.
func (r *Reader) storeHeader(sourceID string, prefix, inner []byte) {
	if r.cache == nil {
		return
	}
	data := make([]byte, 0, len(prefix)+len(inner))
	data = append(data, prefix...)
	data = append(data, inner...)
	if err := r.cache.Put(cache.HeaderKey(sourceID), newBytesFile(data)); err != nil {
		r.log().Debug("header cache store failed", "source", sourceID, "error", err)
	}
}

// readAllCached serves file content from the cache, filling it on a miss.
// Content is verified against key both when read from and before being
// written to the cache.
func (r *Reader) readAllCached(ctx context.Context, path string, node *index.Node, key digest.Digest, off, length int64) ([]byte, error) {
	if data, ok := r.readCacheEntry(path, key); ok {
		r.log().Debug("readall cache hit", "path", path)
		return data, nil
	}
	r.log().Debug("readall cache miss", "path", path)

	result, err, _ := r.readGroup.Do(key.String(), func() (any, error) {
		if data, ok := r.readCacheEntry(path, key); ok {
			return data, nil
		}
		data, err := r.fetch(ctx, path, off, length)
		if err != nil {
			return nil, err
		}
		if err := verifyContent(path, data, node.Integrity); err != nil {
			return nil, err
		}
		_ = r.cache.Put(key, newBytesFile(data)) //nolint:errcheck // caching is opportunistic
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// readCacheEntry reads and verifies one cached file. Corrupt entries are
// deleted and reported as misses.
func (r *Reader) readCacheEntry(path string, key digest.Digest) ([]byte, bool) {
	f, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	defer f.Close()
	verifier := key.Verifier()
	data, err := io.ReadAll(io.TeeReader(f, verifier))
	if err == nil && verifier.Verified() {
		return data, true
	}
	r.log().Warn("discarding corrupt cache entry", "path", path, "digest", key.String())
	_ = r.cache.Delete(key) //nolint:errcheck // best-effort cache cleanup on hash mismatch
	return nil, false
}

// cachedStream opens a cached file as a verifying stream.
func (r *Reader) cachedStream(path string, key digest.Digest) (io.ReadCloser, bool) {
	f, ok := r.cache.Get(key)
	if !ok {
		return nil, false
	}
	r.log().Debug("stream cache hit", "path", path)
	return &cachedFile{
		verifyingReader: newVerifyingReader(f, path, key),
		onMismatch:      func() { _ = r.cache.Delete(key) }, //nolint:errcheck // best-effort cleanup
	}, true
}

// cachedFile deletes its cache entry when verification fails.
type cachedFile struct {
	*verifyingReader
	onMismatch func()
}

func (f *cachedFile) Read(p []byte) (int, error) {
	n, err := f.verifyingReader.Read(p)
	if f.verifyingReader.err != nil && f.onMismatch != nil {
		f.onMismatch()
		f.onMismatch = nil
	}
	return n, err
}

// bytesFile wraps []byte as fs.File for cache Put.
type bytesFile struct {
	*bytes.Reader
	size int64
}

func newBytesFile(data []byte) *bytesFile {
	return &bytesFile{Reader: bytes.NewReader(data), size: int64(len(data))}
}

// Stat returns synthetic file info with the cached size.
func (f *bytesFile) Stat() (fs.FileInfo, error) {
	return &bytesFileInfo{size: f.size}, nil
}

// Close is a no-op since the underlying bytes.Reader needs no cleanup.
func (f *bytesFile) Close() error { return nil }

// bytesFileInfo implements fs.FileInfo for bytesFile.
type bytesFileInfo struct {
	size int64
}

func (fi *bytesFileInfo) Name() string       { return "" }
func (fi *bytesFileInfo) Size() int64        { return fi.size }
func (fi *bytesFileInfo) Mode() fs.FileMode  { return 0o644 }
func (fi *bytesFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *bytesFileInfo) IsDir() bool        { return false }
func (fi *bytesFileInfo) Sys() any           { return nil }
