package asar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/core/internal/header"
	"github.com/meigma/asar/core/internal/index"
	"github.com/meigma/asar/core/internal/rangeio"
	"github.com/meigma/asar/core/internal/sizing"
)

// Reader resolves paths in an archive reachable through a RangeSource.
//
// LoadHeader must succeed before any other query; until then queries fail
// with ErrNotInitialized. The decoded index is never mutated after loading,
// so a loaded Reader is safe for concurrent use.
type Reader struct {
	src             RangeSource
	chunkSize       int64
	maxHeaderSize   int64
	verifyIntegrity bool
	cache           cache.Cache        // nil = no caching
	loadGroup       singleflight.Group // zero value is valid
	readGroup       singleflight.Group // zero value is valid
	state           atomic.Pointer[loadedHeader]
	logger          *slog.Logger
}

// loadedHeader is the immutable result of LoadHeader.
type loadedHeader struct {
	root *index.Node
	size int64 // header length, the absolute offset of the content region
}

// NewReader returns a Reader over src. No bytes are fetched until
// LoadHeader is called.
func NewReader(src RangeSource, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:           src,
		chunkSize:     DefaultChunkSize,
		maxHeaderSize: DefaultMaxHeaderSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Source returns the underlying range source.
func (r *Reader) Source() RangeSource {
	return r.src
}

// LoadHeader fetches and decodes the archive header.
//
// The header is read in two requests: the fixed-size prefix that declares
// its length, then the rest. LoadHeader is idempotent; concurrent callers
// share one load, which is not canceled when the caller that started it
// gives up.
func (r *Reader) LoadHeader(ctx context.Context) error {
	if r.state.Load() != nil {
		return nil
	}
	shared := context.WithoutCancel(ctx)
	ch := r.loadGroup.DoChan("header", func() (any, error) {
		if r.state.Load() != nil {
			return nil, nil //nolint:nilnil // already loaded
		}
		loaded, err := r.loadHeader(shared)
		if err != nil {
			return nil, err
		}
		r.state.Store(loaded)
		return nil, nil //nolint:nilnil // result is stored on the Reader
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reader) loadHeader(ctx context.Context) (*loadedHeader, error) {
	sourceID := r.sourceID()
	if loaded, ok := r.cachedHeader(sourceID); ok {
		r.log().Debug("header cache hit", "source", sourceID, "header_size", loaded.size)
		return loaded, nil
	}

	prefix, err := rangeio.Fetch(ctx, r.src, 0, header.PrefixSize)
	if err != nil {
		return nil, fmt.Errorf("load header: %w", err)
	}
	innerLen, err := header.ParsePrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("load header: %w", err)
	}
	total := int64(header.PrefixSize) + int64(innerLen)
	if r.maxHeaderSize > 0 && total > r.maxHeaderSize {
		return nil, fmt.Errorf("load header: %w: %d bytes exceeds limit %d", ErrHeaderTooLarge, total, r.maxHeaderSize)
	}
	inner, err := rangeio.Fetch(ctx, r.src, header.PrefixSize, int64(innerLen))
	if err != nil {
		return nil, fmt.Errorf("load header: %w", err)
	}
	root, err := header.DecodeInner(inner)
	if err != nil {
		return nil, fmt.Errorf("load header: %w", err)
	}
	r.log().Debug("header loaded", "header_size", total)

	if sourceID != "" {
		r.storeHeader(sourceID, prefix, inner)
	}
	return &loadedHeader{root: root, size: total}, nil
}

func (r *Reader) sourceID() string {
	if id, ok := r.src.(SourceIdentifier); ok {
		return id.SourceID()
	}
	return ""
}

func (r *Reader) loaded() (*loadedHeader, error) {
	h := r.state.Load()
	if h == nil {
		return nil, ErrNotInitialized
	}
	return h, nil
}

// Loaded reports whether the header has been loaded.
func (r *Reader) Loaded() bool {
	return r.state.Load() != nil
}

// HeaderSize returns the encoded header length, which is also the absolute
// offset at which file content begins.
func (r *Reader) HeaderSize() (int64, error) {
	h, err := r.loaded()
	if err != nil {
		return 0, err
	}
	return h.size, nil
}

// lookupNode resolves path to its node and canonical path.
func (r *Reader) lookupNode(path string) (*index.Node, string, error) {
	h, err := r.loaded()
	if err != nil {
		return nil, "", err
	}
	segments, err := index.Split(path)
	if err != nil {
		return nil, "", err
	}
	node, err := h.root.Lookup(segments)
	if err != nil {
		return nil, "", err
	}
	return node, index.Join(segments), nil
}

// Lookup returns the entry at path. The root is "", "." or "/".
func (r *Reader) Lookup(path string) (Entry, error) {
	node, canonical, err := r.lookupNode(path)
	if err != nil {
		return Entry{}, err
	}
	return entryFromNode(canonical, node), nil
}

// IsDirectory reports whether path names a directory.
func (r *Reader) IsDirectory(path string) (bool, error) {
	node, _, err := r.lookupNode(path)
	if err != nil {
		return false, err
	}
	return node.IsDir(), nil
}

// List returns the sorted names of the children of the directory at path.
func (r *Reader) List(path string) ([]string, error) {
	node, canonical, err := r.lookupNode(path)
	if err != nil {
		return nil, err
	}
	if !node.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, canonical)
	}
	return node.Names(), nil
}

// WalkFunc is called by Walk for every entry below the root.
type WalkFunc func(path string, entry Entry) error

// Walk visits every entry depth-first in name order. Returning an error
// from fn stops the walk and returns that error.
func (r *Reader) Walk(fn WalkFunc) error {
	h, err := r.loaded()
	if err != nil {
		return err
	}
	return h.root.Walk(func(segments []string, node *index.Node) error {
		path := index.Join(segments)
		return fn(path, entryFromNode(path, node))
	})
}

// Range returns the absolute archive offset and length of the file at path.
func (r *Reader) Range(path string) (off, length int64, err error) {
	node, canonical, err := r.lookupNode(path)
	if err != nil {
		return 0, 0, err
	}
	return r.fileRange(canonical, node)
}

func (r *Reader) fileRange(path string, node *index.Node) (off, length int64, err error) {
	if node.IsDir() {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotFile, path)
	}
	if node.Unpacked {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnpacked, path)
	}
	h, err := r.loaded()
	if err != nil {
		return 0, 0, err
	}
	rel, err := sizing.ToInt64(node.Offset, ErrSizeOverflow)
	if err != nil {
		return 0, 0, err
	}
	length, err = sizing.ToInt64(node.Size, ErrSizeOverflow)
	if err != nil {
		return 0, 0, err
	}
	off, ok := sizing.AddInt64(h.size, rel)
	if !ok {
		return 0, 0, ErrSizeOverflow
	}
	if _, ok := sizing.AddInt64(off, length); !ok {
		return 0, 0, ErrSizeOverflow
	}
	return off, length, nil
}

// ReadAll returns the full content of the file at path in one range request.
func (r *Reader) ReadAll(ctx context.Context, path string) ([]byte, error) {
	node, canonical, err := r.lookupNode(path)
	if err != nil {
		return nil, err
	}
	off, length, err := r.fileRange(canonical, node)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if key, ok := integrityDigest(node.Integrity); ok {
			return r.readAllCached(ctx, canonical, node, key, off, length)
		}
	}
	data, err := r.fetch(ctx, canonical, off, length)
	if err != nil {
		return nil, err
	}
	if r.verifyIntegrity {
		if err := verifyContent(canonical, data, node.Integrity); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (r *Reader) fetch(ctx context.Context, path string, off, length int64) ([]byte, error) {
	r.log().Debug("fetching file", "path", path, "offset", off, "size", length)
	data, err := rangeio.Fetch(ctx, r.src, off, length)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// OpenStream returns a stream over the content of the file at path.
//
// Sources that stream natively are passed through; others are read in
// chunks of the configured size, one request at a time. Closing the stream
// early stops further requests.
func (r *Reader) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	node, canonical, err := r.lookupNode(path)
	if err != nil {
		return nil, err
	}
	return r.openStream(ctx, canonical, node)
}

func (r *Reader) openStream(ctx context.Context, path string, node *index.Node) (io.ReadCloser, error) {
	off, length, err := r.fileRange(path, node)
	if err != nil {
		return nil, err
	}
	key, hasDigest := integrityDigest(node.Integrity)
	if r.cache != nil && hasDigest {
		if rc, ok := r.cachedStream(path, key); ok {
			return rc, nil
		}
	}
	rc, err := rangeio.Open(ctx, r.src, off, length, r.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if r.verifyIntegrity && hasDigest {
		return newVerifyingReader(rc, path, key), nil
	}
	return rc, nil
}
