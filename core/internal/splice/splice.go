// Package splice concatenates sized byte sources into one stream.
//
// Entries are drained strictly in order: the next source is not opened
// until the current one has produced its declared size. Each source is
// consumed at most once.
package splice

import (
	"bytes"
	"fmt"
	"io"

	"github.com/meigma/asar/core/internal/asartype"
)

// ShortSourcePolicy decides what happens when a source ends before its
// declared size.
type ShortSourcePolicy uint8

const (
	// ShortSourceError ends the output with ErrShortSource.
	ShortSourceError ShortSourcePolicy = iota

	// ShortSourceZeroFill emits zeros for the missing bytes so that later
	// entries stay at their declared offsets.
	ShortSourceZeroFill
)

// Entry is one sized source scheduled for concatenation.
type Entry struct {
	size    int64
	open    func() (io.ReadCloser, error)
	release func() error
}

// FromBytes returns an entry for an in-memory buffer.
func FromBytes(data []byte) Entry {
	return Entry{
		size: int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromReader returns an entry that yields size bytes from r.
//
// If r is an io.Closer, ownership passes to the splicer: it is closed once
// drained, or when the splicer is closed before reaching it.
func FromReader(r io.Reader, size int64) Entry {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return Entry{
		size:    size,
		open:    func() (io.ReadCloser, error) { return rc, nil },
		release: rc.Close,
	}
}

// FromOpener returns an entry whose source is opened lazily when the
// splicer reaches it.
func FromOpener(size int64, open func() (io.ReadCloser, error)) Entry {
	return Entry{size: size, open: open}
}

// Size returns the entry's declared size.
func (e Entry) Size() int64 {
	return e.size
}

// Option configures a Reader.
type Option func(*Reader)

// WithShortSourcePolicy sets how sources shorter than their declared size
// are handled. The default is ShortSourceError.
func WithShortSourcePolicy(p ShortSourcePolicy) Option {
	return func(r *Reader) {
		r.policy = p
	}
}

// WithEntryDone registers a callback invoked after each entry has been
// fully emitted, with the entry's position and size.
func WithEntryDone(fn func(i int, size int64)) Option {
	return func(r *Reader) {
		r.onDone = fn
	}
}

// Reader is the concatenated output of a list of entries.
// It is not safe for concurrent use.
type Reader struct {
	entries []Entry
	policy  ShortSourcePolicy
	onDone  func(int, int64)

	idx       int           // index of the current entry
	cur       io.ReadCloser // open source of the current entry, nil if none
	remaining int64         // bytes still owed by the current entry
	zeroFill  bool          // current entry ran short and is being padded
	err       error         // sticky terminal error
	closed    bool
}

// New returns a Reader over entries.
func New(entries []Entry, opts ...Option) *Reader {
	r := &Reader{entries: entries, idx: -1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if r.cur == nil && !r.zeroFill {
			if err := r.advance(); err != nil {
				r.err = err
				return 0, err
			}
		}
		if r.remaining == 0 {
			r.finishEntry()
			continue
		}

		want := int64(len(p))
		if want > r.remaining {
			want = r.remaining
		}

		if r.zeroFill {
			clear(p[:want])
			r.remaining -= want
			return int(want), nil
		}

		n, err := r.cur.Read(p[:want])
		r.remaining -= int64(n)
		if err == io.EOF && r.remaining > 0 {
			err = r.shortSource()
		} else if err == io.EOF {
			err = nil
		}
		if err != nil {
			r.err = err
			_ = r.releaseCurrent() //nolint:errcheck // read error takes precedence
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
	}
}

// advance opens the next entry or reports io.EOF after the last one.
func (r *Reader) advance() error {
	r.idx++
	if r.idx >= len(r.entries) {
		return io.EOF
	}
	e := r.entries[r.idx]
	if e.size < 0 {
		return fmt.Errorf("splice: entry %d has negative size %d", r.idx, e.size)
	}
	rc, err := e.open()
	if err != nil {
		return fmt.Errorf("splice: open entry %d: %w", r.idx, err)
	}
	r.cur = rc
	r.remaining = e.size
	return nil
}

// shortSource applies the short-source policy to the current entry.
func (r *Reader) shortSource() error {
	missing := r.remaining
	if r.policy == ShortSourceZeroFill {
		if err := r.releaseCurrent(); err != nil {
			return err
		}
		r.zeroFill = true
		return nil
	}
	return fmt.Errorf("%w: entry %d missing %d of %d bytes", asartype.ErrShortSource, r.idx, missing, r.entries[r.idx].size)
}

// finishEntry releases the current entry after it has produced its size.
// Bytes beyond the declared size are never read.
func (r *Reader) finishEntry() {
	_ = r.releaseCurrent() //nolint:errcheck // content already delivered
	r.zeroFill = false
	if r.onDone != nil && r.idx >= 0 && r.idx < len(r.entries) {
		r.onDone(r.idx, r.entries[r.idx].size)
	}
}

func (r *Reader) releaseCurrent() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.Close()
	r.cur = nil
	return err
}

// Close releases the current source and every source not yet reached.
// Reading after Close fails.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.releaseCurrent()
	for i := r.idx + 1; i < len(r.entries); i++ {
		if rel := r.entries[i].release; rel != nil {
			if relErr := rel(); relErr != nil && err == nil {
				err = relErr
			}
		}
	}
	return err
}
