// Package http serves archive ranges from a URL using HTTP range requests.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/meigma/asar/core/internal/asartype"
)

// ErrRangeUnsupported is returned when the server ignores Range headers.
var ErrRangeUnsupported = errors.New("http: range requests not supported")

// Source implements random access reads via HTTP range requests.
//
// Every window is served as a response body stream, so Source satisfies
// both RangeSource and StreamingSource: streamed files cost one request
// regardless of their size.
type Source struct {
	url                   string
	client                *nethttp.Client
	headers               nethttp.Header
	size                  int64
	etag                  string
	lastModified          string
	sourceID              string
	useConditionalHeaders bool
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithSourceID overrides the default source identifier used for caching.
func WithSourceID(id string) Option {
	return func(s *Source) {
		s.sourceID = id
	}
}

// WithConditionalHeaders enables conditional range reads using ETag or Last-Modified.
// This is disabled by default because some registries reject conditional range requests.
func WithConditionalHeaders() Option {
	return func(s *Source) {
		s.useConditionalHeaders = true
	}
}

// NewSource creates a Source backed by HTTP range requests.
// It probes the remote to determine the content size.
func NewSource(ctx context.Context, url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	size, etag, lastModified, err := s.fetchMetadata(ctx)
	if err != nil {
		return nil, err
	}
	s.size = size
	s.etag = etag
	s.lastModified = lastModified
	if s.sourceID == "" {
		s.sourceID = s.defaultSourceID()
	}
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// SourceID returns a stable identifier for the remote content.
func (s *Source) SourceID() string {
	return s.sourceID
}

// FetchRange returns the window [off, off+length) as a stream chunk.
func (s *Source) FetchRange(ctx context.Context, off, length int64) (asartype.Chunk, error) {
	rc, err := s.StreamRange(ctx, off, length)
	if err != nil {
		return asartype.Chunk{}, err
	}
	return asartype.StreamChunk(rc), nil
}

// StreamRange returns a reader for the byte range [off, off+length).
//
// Ranges that extend past the content size fail with ErrIncompleteRead.
// The returned reader must be closed by the caller to release the
// underlying HTTP connection.
func (s *Source) StreamRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("invalid range: offset %d length %d", off, length)
	}
	if off+length > s.size {
		return nil, fmt.Errorf("%w: range [%d, %d) exceeds %d bytes", asartype.ErrIncompleteRead, off, off+length, s.size)
	}
	if length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	end := off + length - 1
	resp, err := s.rangeRequest(ctx, off, end, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == nethttp.StatusPreconditionFailed && s.hasConditionalHeaders() {
		resp.Body.Close()
		resp, err = s.rangeRequest(ctx, off, end, false)
		if err != nil {
			return nil, err
		}
	}

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		// ok
	case nethttp.StatusRequestedRangeNotSatisfiable:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: range [%d, %d) not satisfiable", asartype.ErrIncompleteRead, off, off+length)
	case nethttp.StatusOK:
		resp.Body.Close()
		return nil, ErrRangeUnsupported
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}

	return &rangeReadCloser{
		body:   resp.Body,
		reader: io.LimitReader(resp.Body, length),
	}, nil
}

// defaultSourceID builds a source identifier from the URL and available metadata.
func (s *Source) defaultSourceID() string {
	if s.etag != "" {
		return fmt.Sprintf("url:%s|etag:%s", s.url, s.etag)
	}
	if s.lastModified != "" {
		return fmt.Sprintf("url:%s|mod:%s|size:%d", s.url, s.lastModified, s.size)
	}
	return fmt.Sprintf("url:%s|size:%d", s.url, s.size)
}

// fetchMetadata retrieves content size and cache validators from the remote server.
// It first attempts a HEAD request, then verifies with a range probe.
func (s *Source) fetchMetadata(ctx context.Context) (size int64, etag, lastModified string, err error) {
	size = -1

	if resp, headErr := s.doHead(ctx); headErr == nil {
		size = resp.ContentLength
		etag = resp.Header.Get("ETag")
		lastModified = resp.Header.Get("Last-Modified")
		resp.Body.Close()
	}

	rangeSize, rangeETag, rangeLastModified, err := s.rangeProbe(ctx)
	if err != nil {
		return 0, "", "", err
	}
	if size > 0 && size != rangeSize {
		return 0, "", "", fmt.Errorf("content size mismatch: head=%d range=%d", size, rangeSize)
	}
	if etag == "" {
		etag = rangeETag
	}
	if lastModified == "" {
		lastModified = rangeLastModified
	}
	return rangeSize, etag, lastModified, nil
}

// rangeProbe verifies range request support and extracts content size from Content-Range.
func (s *Source) rangeProbe(ctx context.Context) (size int64, etag, lastModified string, err error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet, false)
	if err != nil {
		return 0, "", "", err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", "", err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != nethttp.StatusPartialContent {
		if resp.StatusCode == nethttp.StatusOK {
			return 0, "", "", ErrRangeUnsupported
		}
		return 0, "", "", fmt.Errorf("range probe failed: %s", resp.Status)
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return 0, "", "", errors.New("range probe missing Content-Range")
	}
	size, err = parseContentRange(crange)
	if err != nil {
		return 0, "", "", err
	}

	return size, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), nil
}

// doHead performs a HEAD request to retrieve metadata without body content.
func (s *Source) doHead(ctx context.Context) (*nethttp.Response, error) {
	req, err := s.newRequest(ctx, nethttp.MethodHead, false)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

// newRequest creates an HTTP request with configured headers and optional conditional headers.
func (s *Source) newRequest(ctx context.Context, method string, withConditions bool) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	if method == nethttp.MethodGet && withConditions && s.useConditionalHeaders {
		if s.etag != "" && req.Header.Get("If-Match") == "" {
			req.Header.Set("If-Match", s.etag)
		}
		if s.lastModified != "" && req.Header.Get("If-Unmodified-Since") == "" {
			req.Header.Set("If-Unmodified-Since", s.lastModified)
		}
	}
	return req, nil
}

// rangeRequest performs a GET request for the specified byte range.
func (s *Source) rangeRequest(ctx context.Context, off, end int64, withConditions bool) (*nethttp.Response, error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet, withConditions)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	return s.client.Do(req)
}

// hasConditionalHeaders reports whether conditional headers are enabled and available.
func (s *Source) hasConditionalHeaders() bool {
	if !s.useConditionalHeaders {
		return false
	}
	return s.etag != "" || s.lastModified != ""
}

// rangeReadCloser wraps an HTTP response body with a limit reader.
// It drains the body on close to enable connection reuse.
type rangeReadCloser struct {
	body   io.ReadCloser
	reader io.Reader
}

// Read reads from the underlying limit reader.
func (r *rangeReadCloser) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

// Close drains and closes the underlying response body.
func (r *rangeReadCloser) Close() error {
	_, _ = io.Copy(io.Discard, r.body) //nolint:errcheck // best-effort drain for connection reuse
	return r.body.Close()
}

// parseContentRange extracts the total size from a Content-Range header value.
// It expects the format "bytes start-end/size" and returns the size portion.
func parseContentRange(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	if parts[1] == "*" {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	if size < 0 {
		return 0, fmt.Errorf("invalid Content-Range %q", value)
	}
	return size, nil
}

// Interface compliance.
var (
	_ asartype.StreamingSource  = (*Source)(nil)
	_ asartype.SourceIdentifier = (*Source)(nil)
)
