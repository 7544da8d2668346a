package asar

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BytesSource serves ranges of an in-memory archive as buffer chunks.
type BytesSource []byte

// FetchRange returns the requested window of the buffer.
func (b BytesSource) FetchRange(_ context.Context, off, length int64) (Chunk, error) {
	if off < 0 || length < 0 {
		return Chunk{}, fmt.Errorf("invalid range: offset %d length %d", off, length)
	}
	if off+length > int64(len(b)) {
		return Chunk{}, fmt.Errorf("%w: range [%d, %d) exceeds %d bytes", ErrIncompleteRead, off, off+length, len(b))
	}
	return BufferChunk(b[off : off+length]), nil
}

// Size returns the buffer length.
func (b BytesSource) Size() int64 {
	return int64(len(b))
}

// ReaderAtSource serves ranges of any io.ReaderAt, such as an *os.File.
//
// It streams windows natively, so readers pass its streams through instead
// of fetching in chunks.
type ReaderAtSource struct {
	ra       io.ReaderAt
	size     int64
	sourceID string
}

// NewReaderAtSource returns a source over the first size bytes of ra.
// sourceID identifies the content for header caching; it may be empty.
func NewReaderAtSource(ra io.ReaderAt, size int64, sourceID string) *ReaderAtSource {
	return &ReaderAtSource{ra: ra, size: size, sourceID: sourceID}
}

// FetchRange reads the window into memory.
func (s *ReaderAtSource) FetchRange(ctx context.Context, off, length int64) (Chunk, error) {
	if err := s.check(ctx, off, length); err != nil {
		return Chunk{}, err
	}
	buf := make([]byte, length)
	n, err := s.ra.ReadAt(buf, off)
	if int64(n) == length {
		return BufferChunk(buf), nil
	}
	if err == nil || err == io.EOF {
		return Chunk{}, fmt.Errorf("%w: got %d of %d bytes at offset %d", ErrIncompleteRead, n, length, off)
	}
	return Chunk{}, err
}

// StreamRange returns a stream over the window.
func (s *ReaderAtSource) StreamRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := s.check(ctx, off, length); err != nil {
		return nil, err
	}
	return io.NopCloser(io.NewSectionReader(s.ra, off, length)), nil
}

func (s *ReaderAtSource) check(ctx context.Context, off, length int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if off < 0 || length < 0 {
		return fmt.Errorf("invalid range: offset %d length %d", off, length)
	}
	if off+length > s.size {
		return fmt.Errorf("%w: range [%d, %d) exceeds %d bytes", ErrIncompleteRead, off, off+length, s.size)
	}
	return nil
}

// Size returns the total size of the source.
func (s *ReaderAtSource) Size() int64 {
	return s.size
}

// SourceID returns the identifier supplied at construction.
func (s *ReaderAtSource) SourceID() string {
	return s.sourceID
}

func fileSourceID(path string, info os.FileInfo) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	return fmt.Sprintf("file:%s:%d:%d", absPath, info.Size(), info.ModTime().UnixNano())
}

// Interface compliance.
var (
	_ RangeSource      = BytesSource(nil)
	_ StreamingSource  = (*ReaderAtSource)(nil)
	_ SourceIdentifier = (*ReaderAtSource)(nil)
)
