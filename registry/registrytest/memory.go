// Package registrytest provides an in-memory OCI registry for tests.
package registrytest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/meigma/asar/registry/oras"
)

// Token is the Authorization header value blob reads must carry.
const Token = "Bearer registrytest"

// Memory is an in-memory OCI client for a single repository. Blobs are
// served over HTTP so pulls exercise real range requests. Repository
// references are ignored; tags are global.
type Memory struct {
	mu        sync.Mutex
	blobs     map[digest.Digest][]byte
	manifests map[digest.Digest][]byte
	tags      map[string]digest.Digest
	server    *httptest.Server
	pushErr   error

	manifestGets  atomic.Int32
	rangeRequests atomic.Int32
	invalidations atomic.Int32
}

// NewMemory starts a blob server that is closed when tb finishes.
func NewMemory(tb testing.TB) *Memory {
	tb.Helper()
	m := &Memory{
		blobs:     make(map[digest.Digest][]byte),
		manifests: make(map[digest.Digest][]byte),
		tags:      make(map[string]digest.Digest),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serveBlob))
	tb.Cleanup(m.server.Close)
	return m
}

func (m *Memory) serveBlob(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != Token {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	dgst := digest.Digest(strings.TrimPrefix(r.URL.Path, "/blobs/"))
	m.mu.Lock()
	data, ok := m.blobs[dgst]
	m.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodGet {
		m.rangeRequests.Add(1)
	}
	http.ServeContent(w, r, "blob", time.Time{}, bytes.NewReader(data))
}

// FailPushes makes every PushBlob return err.
func (m *Memory) FailPushes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushErr = err
}

// Tagged returns the manifest digest tag points at.
func (m *Memory) Tagged(tag string) (digest.Digest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.tags[tag]
	return d, ok
}

// Blob returns a stored blob.
func (m *Memory) Blob(d digest.Digest) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[d]
	return data, ok
}

// DeleteBlob removes a stored blob.
func (m *Memory) DeleteBlob(d digest.Digest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, d)
}

// ManifestGets counts FetchManifest calls.
func (m *Memory) ManifestGets() int32 { return m.manifestGets.Load() }

// RangeRequests counts GET requests served for blobs.
func (m *Memory) RangeRequests() int32 { return m.rangeRequests.Load() }

// Invalidations counts InvalidateAuthHeaders calls.
func (m *Memory) Invalidations() int32 { return m.invalidations.Load() }

// PushBlob stores a blob after checking its size and digest.
func (m *Memory) PushBlob(_ context.Context, _ string, desc *ocispec.Descriptor, r io.Reader) error {
	m.mu.Lock()
	pushErr := m.pushErr
	m.mu.Unlock()
	if pushErr != nil {
		return pushErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != desc.Size {
		return fmt.Errorf("%w: got %d bytes", oras.ErrSizeMismatch, len(data))
	}
	if got := digest.FromBytes(data); got != desc.Digest {
		return fmt.Errorf("%w: got %s", oras.ErrDigestMismatch, got)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[desc.Digest] = data
	return nil
}

// FetchBlob opens a stored blob.
func (m *Memory) FetchBlob(_ context.Context, _ string, desc *ocispec.Descriptor) (io.ReadCloser, error) {
	data, ok := m.Blob(desc.Digest)
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", oras.ErrNotFound, desc.Digest)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// PushManifest stores manifest and points tag at it.
func (m *Memory) PushManifest(_ context.Context, _, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	raw, err := json.Marshal(manifest)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc := ocispec.Descriptor{
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: manifest.ArtifactType,
		Digest:       digest.FromBytes(raw),
		Size:         int64(len(raw)),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manifests[desc.Digest] = raw
	m.tags[tag] = desc.Digest
	return desc, nil
}

// FetchManifest returns a stored manifest and its bytes.
func (m *Memory) FetchManifest(_ context.Context, _ string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
	m.manifestGets.Add(1)
	m.mu.Lock()
	raw, ok := m.manifests[expected.Digest]
	m.mu.Unlock()
	if !ok {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: manifest %s", oras.ErrNotFound, expected.Digest)
	}
	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: %v", oras.ErrManifestInvalid, err)
	}
	return manifest, raw, nil
}

// Resolve looks up a tag or manifest digest.
func (m *Memory) Resolve(_ context.Context, _, ref string) (ocispec.Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dgst := digest.Digest(ref)
	if !strings.Contains(ref, ":") {
		d, ok := m.tags[ref]
		if !ok {
			return ocispec.Descriptor{}, fmt.Errorf("%w: tag %s", oras.ErrNotFound, ref)
		}
		dgst = d
	}
	raw, ok := m.manifests[dgst]
	if !ok {
		return ocispec.Descriptor{}, fmt.Errorf("%w: manifest %s", oras.ErrNotFound, dgst)
	}
	return ocispec.Descriptor{MediaType: ocispec.MediaTypeImageManifest, Digest: dgst, Size: int64(len(raw))}, nil
}

// Tag points tag at an existing manifest.
func (m *Memory) Tag(_ context.Context, _ string, desc *ocispec.Descriptor, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.manifests[desc.Digest]; !ok {
		return fmt.Errorf("%w: manifest %s", oras.ErrNotFound, desc.Digest)
	}
	m.tags[tag] = desc.Digest
	return nil
}

// BlobURL returns the blob server URL for a digest.
func (m *Memory) BlobURL(_, dgst string) (string, error) {
	return m.server.URL + "/blobs/" + dgst, nil
}

// AuthHeaders returns headers carrying Token.
func (m *Memory) AuthHeaders(context.Context, string) (http.Header, error) {
	h := make(http.Header)
	h.Set("Authorization", Token)
	return h, nil
}

// InvalidateAuthHeaders records the call.
func (m *Memory) InvalidateAuthHeaders(string) error {
	m.invalidations.Add(1)
	return nil
}
