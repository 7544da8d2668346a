// Package rangeio turns range sources into sequential byte streams.
//
// Sources that stream natively are passed through. Others are read one
// chunk at a time: each chunk is fetched only after the previous one has
// been consumed, so at most one request is in flight per stream.
package rangeio

import (
	"context"
	"fmt"
	"io"

	"github.com/meigma/asar/core/internal/asartype"
)

// DefaultChunkSize is the fetch size used when none is configured.
const DefaultChunkSize = 64 << 10

// Fetch reads exactly length bytes at off into memory.
func Fetch(ctx context.Context, src asartype.RangeSource, off, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	chunk, err := src.FetchRange(ctx, off, length)
	if err != nil {
		return nil, fmt.Errorf("fetch range [%d, %d): %w", off, off+length, err)
	}
	data, err := chunk.ReadExact(length)
	if err != nil {
		return nil, fmt.Errorf("fetch range [%d, %d): %w", off, off+length, err)
	}
	return data, nil
}

// Open returns a stream over length bytes of src starting at off.
//
// chunkSize bounds each FetchRange request; values <= 0 select
// DefaultChunkSize. The stream fails with ErrIncompleteRead if the source
// delivers fewer bytes than requested and never yields more than length.
func Open(ctx context.Context, src asartype.RangeSource, off, length, chunkSize int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("invalid range: offset %d length %d", off, length)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ss, ok := src.(asartype.StreamingSource); ok {
		if length == 0 {
			return io.NopCloser(eofReader{}), nil
		}
		rc, err := ss.StreamRange(ctx, off, length)
		if err != nil {
			return nil, fmt.Errorf("stream range [%d, %d): %w", off, off+length, err)
		}
		return newExactReader(rc, length), nil
	}
	return &chunkedReader{
		ctx:       ctx,
		src:       src,
		pos:       off,
		end:       off + length,
		chunkSize: chunkSize,
	}, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// exactReader yields exactly n bytes of rc.
type exactReader struct {
	rc        io.ReadCloser
	remaining int64
	want      int64
}

func newExactReader(rc io.ReadCloser, n int64) *exactReader {
	return &exactReader{rc: rc, remaining: n, want: n}
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}
	n, err := e.rc.Read(p)
	e.remaining -= int64(n)
	if err == io.EOF {
		if e.remaining > 0 {
			return n, fmt.Errorf("%w: got %d of %d bytes", asartype.ErrIncompleteRead, e.want-e.remaining, e.want)
		}
		err = nil
	}
	return n, err
}

func (e *exactReader) Close() error {
	return e.rc.Close()
}

// chunkedReader fetches the range in chunkSize pieces on demand.
type chunkedReader struct {
	ctx       context.Context
	src       asartype.RangeSource
	pos       int64 // next offset to fetch
	end       int64
	chunkSize int64

	cur    *exactReader
	err    error
	closed bool
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	if c.err != nil {
		return 0, c.err
	}
	for {
		if c.cur == nil {
			if c.pos >= c.end {
				return 0, io.EOF
			}
			if err := c.next(); err != nil {
				c.err = err
				return 0, err
			}
		}
		n, err := c.cur.Read(p)
		if err == io.EOF {
			_ = c.cur.Close() //nolint:errcheck // chunk fully consumed
			c.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			c.err = err
		}
		return n, err
	}
}

// next fetches the chunk starting at pos.
func (c *chunkedReader) next() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	n := min(c.chunkSize, c.end-c.pos)
	chunk, err := c.src.FetchRange(c.ctx, c.pos, n)
	if err != nil {
		return fmt.Errorf("fetch range [%d, %d): %w", c.pos, c.pos+n, err)
	}
	c.cur = newExactReader(chunk.Reader(), n)
	c.pos += n
	return nil
}

// Close releases the chunk in progress. No further fetches are made.
func (c *chunkedReader) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.cur != nil {
		err := c.cur.Close()
		c.cur = nil
		return err
	}
	return nil
}
