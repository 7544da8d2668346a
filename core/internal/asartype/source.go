package asartype

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Chunk is the payload returned by a RangeSource for one request.
//
// A Chunk holds either an in-memory buffer or a byte stream, never both.
// Stream chunks own their stream; consumers must Close the chunk (or the
// stream) when done.
type Chunk struct {
	data   []byte
	stream io.ReadCloser
}

// BufferChunk returns a Chunk backed by an in-memory buffer.
func BufferChunk(data []byte) Chunk {
	if data == nil {
		data = []byte{}
	}
	return Chunk{data: data}
}

// StreamChunk returns a Chunk backed by a readable stream.
func StreamChunk(rc io.ReadCloser) Chunk {
	return Chunk{stream: rc}
}

// IsStream reports whether the chunk carries a stream rather than a buffer.
func (c Chunk) IsStream() bool {
	return c.stream != nil
}

// Bytes returns the buffer of a buffer chunk, or nil for stream chunks.
func (c Chunk) Bytes() []byte {
	return c.data
}

// Reader returns a ReadCloser over the chunk content.
// For stream chunks this is the stream itself.
func (c Chunk) Reader() io.ReadCloser {
	if c.stream != nil {
		return c.stream
	}
	return io.NopCloser(bytes.NewReader(c.data))
}

// Close releases the chunk's stream, if any.
func (c Chunk) Close() error {
	if c.stream == nil {
		return nil
	}
	return c.stream.Close()
}

// ReadExact materializes exactly length bytes from the chunk and releases it.
//
// It returns ErrIncompleteRead if the chunk holds fewer bytes. Bytes beyond
// length are ignored.
func (c Chunk) ReadExact(length int64) ([]byte, error) {
	if c.stream == nil {
		if int64(len(c.data)) < length {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteRead, len(c.data), length)
		}
		return c.data[:length], nil
	}
	defer c.stream.Close()
	buf := make([]byte, length)
	n, err := io.ReadFull(c.stream, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrIncompleteRead, n, length)
		}
		return nil, err
	}
	return buf, nil
}

// RangeSource fetches exact byte ranges from wherever archive bytes live.
//
// FetchRange must deliver exactly length bytes starting at off, either as
// a buffer or as a stream, or fail. Implementations own timeouts and retry
// policy; ctx cancels an in-flight request.
type RangeSource interface {
	FetchRange(ctx context.Context, off, length int64) (Chunk, error)
}

// StreamingSource is implemented by sources that natively stream arbitrary
// windows. Readers pass such streams through instead of fetching in chunks.
type StreamingSource interface {
	RangeSource
	StreamRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// SourceIdentifier is implemented by sources with a stable identity for
// their content. The identifier keys the header cache.
type SourceIdentifier interface {
	SourceID() string
}

// RangeSourceFunc adapts a function to a RangeSource.
type RangeSourceFunc func(ctx context.Context, off, length int64) (Chunk, error)

// FetchRange calls f(ctx, off, length).
func (f RangeSourceFunc) FetchRange(ctx context.Context, off, length int64) (Chunk, error) {
	return f(ctx, off, length)
}
