package asar

import (
	"log/slog"

	"github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/core/internal/rangeio"
)

// DefaultChunkSize is the size of each range request when a file is
// streamed from a source that cannot stream natively.
const DefaultChunkSize = rangeio.DefaultChunkSize

// DefaultMaxHeaderSize bounds the header length a Reader accepts.
const DefaultMaxHeaderSize = 64 << 20

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger for header loading and content reads.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithChunkSize sets the range request size used to emulate streams.
// Values <= 0 select DefaultChunkSize.
func WithChunkSize(n int64) ReaderOption {
	return func(r *Reader) {
		if n <= 0 {
			n = DefaultChunkSize
		}
		r.chunkSize = n
	}
}

// WithMaxHeaderSize limits the header length accepted by LoadHeader.
// Set limit to 0 to disable the limit.
func WithMaxHeaderSize(limit int64) ReaderOption {
	return func(r *Reader) {
		r.maxHeaderSize = limit
	}
}

// WithCache enables digest-addressed caching.
//
// File content with integrity metadata is cached after the first ReadAll
// and served from the cache afterwards; cached content is always verified.
// If the source implements SourceIdentifier, the header is cached too.
// Concurrent requests for the same content are deduplicated.
func WithCache(c cache.Cache) ReaderOption {
	return func(r *Reader) {
		r.cache = c
	}
}

// WithVerifyIntegrity controls whether content read from the source is
// checked against its integrity metadata. Mismatches fail with
// ErrIntegrity. Files without metadata are never checked.
func WithVerifyIntegrity(enabled bool) ReaderOption {
	return func(r *Reader) {
		r.verifyIntegrity = enabled
	}
}
