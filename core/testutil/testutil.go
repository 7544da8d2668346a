// Package testutil provides in-memory range sources and caches for tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/asar/core/internal/asartype"
)

// Request records one range request.
type Request struct {
	Off, Length int64
}

// MockSource serves ranges of an in-memory archive and records requests.
//
// By default it returns buffer chunks. StreamChunks switches it to stream
// chunks; neither mode implements native window streaming.
type MockSource struct {
	data     []byte
	sourceID string
	streams  bool

	mu       sync.Mutex
	requests []Request
}

// NewMockSource returns a source backed by data with a content-derived ID.
func NewMockSource(data []byte) *MockSource {
	return &MockSource{
		data:     data,
		sourceID: "mock:" + digest.FromBytes(data).Encoded(),
	}
}

// StreamChunks makes the source answer with stream chunks.
func (m *MockSource) StreamChunks() *MockSource {
	m.streams = true
	return m
}

// FetchRange implements asartype.RangeSource.
func (m *MockSource) FetchRange(ctx context.Context, off, length int64) (asartype.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return asartype.Chunk{}, err
	}
	m.mu.Lock()
	m.requests = append(m.requests, Request{Off: off, Length: length})
	m.mu.Unlock()
	window, err := m.window(off, length)
	if err != nil {
		return asartype.Chunk{}, err
	}
	if m.streams {
		return asartype.StreamChunk(io.NopCloser(bytes.NewReader(window))), nil
	}
	return asartype.BufferChunk(window), nil
}

func (m *MockSource) window(off, length int64) ([]byte, error) {
	if off < 0 || length < 0 || off+length > int64(len(m.data)) {
		return nil, fmt.Errorf("%w: range [%d, %d) of %d bytes", asartype.ErrIncompleteRead, off, off+length, len(m.data))
	}
	return m.data[off : off+length], nil
}

// SourceID returns a stable identifier for the source data.
func (m *MockSource) SourceID() string {
	return m.sourceID
}

// Size returns the total size of the backing data.
func (m *MockSource) Size() int64 {
	return int64(len(m.data))
}

// Bytes returns the backing slice for tests that need to mutate data.
func (m *MockSource) Bytes() []byte {
	return m.data
}

// Requests returns a copy of the requests seen so far.
func (m *MockSource) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// RequestCount returns the number of requests seen so far.
func (m *MockSource) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// StreamingSource is a MockSource that also streams windows natively.
type StreamingSource struct {
	*MockSource
	streamCalls atomic.Int64
}

// NewStreamingSource returns a natively streaming source backed by data.
func NewStreamingSource(data []byte) *StreamingSource {
	return &StreamingSource{MockSource: NewMockSource(data)}
}

// StreamRange implements asartype.StreamingSource.
func (s *StreamingSource) StreamRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.streamCalls.Add(1)
	window, err := s.window(off, length)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(window)), nil
}

// StreamCalls returns the number of StreamRange calls.
func (s *StreamingSource) StreamCalls() int64 {
	return s.streamCalls.Load()
}

// ErrInjected is returned by FailingSource.
var ErrInjected = errors.New("testutil: injected failure")

// FailingSource delegates to Source until FailAfter requests have been
// served, then fails every request with ErrInjected.
type FailingSource struct {
	Source    asartype.RangeSource
	FailAfter int64
	served    atomic.Int64
}

// FetchRange implements asartype.RangeSource.
func (f *FailingSource) FetchRange(ctx context.Context, off, length int64) (asartype.Chunk, error) {
	if f.served.Add(1) > f.FailAfter {
		return asartype.Chunk{}, ErrInjected
	}
	return f.Source.FetchRange(ctx, off, length)
}

// MockCache implements a basic concurrency-safe cache for tests.
type MockCache struct {
	mu   sync.RWMutex
	data map[digest.Digest][]byte
	max  int64
	gets atomic.Int64
	hits atomic.Int64
}

// NewMockCache constructs an empty in-memory cache.
func NewMockCache() *MockCache {
	return &MockCache{data: make(map[digest.Digest][]byte)}
}

// Get returns an fs.File for reading cached content.
func (c *MockCache) Get(key digest.Digest) (fs.File, bool) {
	c.gets.Add(1)
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	if !ok {
		return nil, false
	}
	c.hits.Add(1)
	return &mockCacheFile{Reader: bytes.NewReader(data), size: int64(len(data))}, true
}

// Put stores content by reading from the provided fs.File.
func (c *MockCache) Put(key digest.Digest, f fs.File) error {
	content, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = content
	return nil
}

// Delete removes cached content for the given key.
func (c *MockCache) Delete(key digest.Digest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *MockCache) MaxBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.max
}

// SizeBytes returns the current cache size in bytes.
func (c *MockCache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	return total
}

// Prune removes cached entries until the cache is at or below targetBytes.
func (c *MockCache) Prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, data := range c.data {
		total += int64(len(data))
	}
	var freed int64
	for key, data := range c.data {
		if total <= targetBytes {
			break
		}
		delete(c.data, key)
		total -= int64(len(data))
		freed += int64(len(data))
	}
	return freed, nil
}

// GetBytes retrieves raw bytes by key (for test assertions).
func (c *MockCache) GetBytes(key digest.Digest) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.data[key]
	return data, ok
}

// SetBytes stores raw bytes under key, bypassing Put.
func (c *MockCache) SetBytes(key digest.Digest, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Hits returns the number of Get calls that found an entry.
func (c *MockCache) Hits() int64 {
	return c.hits.Load()
}

// Len returns the number of cached entries.
func (c *MockCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// mockCacheFile wraps a bytes.Reader to implement fs.File.
type mockCacheFile struct {
	*bytes.Reader
	size int64
}

func (f *mockCacheFile) Stat() (fs.FileInfo, error) {
	return &mockFileInfo{size: f.size}, nil
}

func (f *mockCacheFile) Close() error {
	return nil
}

// mockFileInfo implements fs.FileInfo for mockCacheFile.
type mockFileInfo struct {
	size int64
}

func (fi *mockFileInfo) Name() string       { return "" }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() fs.FileMode  { return 0o644 }
func (fi *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *mockFileInfo) IsDir() bool        { return false }
func (fi *mockFileInfo) Sys() any           { return nil }
