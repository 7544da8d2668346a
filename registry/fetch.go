package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// maxCachedManifestSize bounds manifests read back from the cache.
const maxCachedManifestSize = 4 << 20

// Fetch retrieves the manifest of an archive without reading the archive.
//
// Tags are resolved against the registry on every call; manifests are
// served from the manifest cache when one is configured.
func (c *Client) Fetch(ctx context.Context, ref string, opts ...FetchOption) (*ArchiveManifest, error) {
	cfg := fetchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	reference, err := parseRef(ref)
	if err != nil {
		return nil, err
	}
	if reference == "" {
		return nil, fmt.Errorf("%w: %q must include a tag or digest", ErrInvalidReference, ref)
	}

	dgst := reference
	if !isDigest(reference) {
		c.log().Debug("resolving tag", "ref", ref)
		desc, err := c.oci.Resolve(ctx, ref, reference)
		if err != nil {
			return nil, mapOCIError(err)
		}
		dgst = desc.Digest.String()
	}

	desc, err := descriptorFromDigest(dgst)
	if err != nil {
		return nil, err
	}

	if !cfg.skipCache {
		if m, ok := c.cachedManifest(desc.Digest); ok {
			return m, nil
		}
	}

	manifest, raw, err := c.oci.FetchManifest(ctx, ref, &desc)
	if err != nil {
		return nil, mapOCIError(err)
	}
	m, err := parseArchiveManifest(&manifest, raw, desc.Digest)
	if err != nil {
		return nil, err
	}

	if c.manifestCache != nil {
		if err := c.manifestCache.Put(desc.Digest, newManifestFile(raw)); err != nil {
			c.log().Warn("manifest cache write failed", "digest", desc.Digest.String(), "error", err)
		}
	}
	return m, nil
}

// cachedManifest returns the cached manifest for dgst. Entries that fail
// verification are deleted.
func (c *Client) cachedManifest(dgst digest.Digest) (*ArchiveManifest, bool) {
	if c.manifestCache == nil {
		return nil, false
	}
	f, ok := c.manifestCache.Get(dgst)
	if !ok {
		c.log().Debug("manifest cache miss", "digest", dgst.String())
		return nil, false
	}
	raw, err := io.ReadAll(io.LimitReader(f, maxCachedManifestSize+1))
	_ = f.Close()

	var m *ArchiveManifest
	if err == nil && len(raw) <= maxCachedManifestSize && dgst.Algorithm().FromBytes(raw) == dgst {
		var manifest ocispec.Manifest
		if err = json.Unmarshal(raw, &manifest); err == nil {
			m, err = parseArchiveManifest(&manifest, raw, dgst)
		}
	}
	if m == nil {
		c.log().Warn("corrupt manifest cache entry deleted", "digest", dgst.String(), "error", err)
		_ = c.manifestCache.Delete(dgst) //nolint:errcheck // best-effort cleanup
		return nil, false
	}
	c.log().Debug("manifest cache hit", "digest", dgst.String())
	return m, true
}

// manifestFile presents manifest bytes as an fs.File for cache writes.
type manifestFile struct {
	*bytes.Reader
	size int64
}

func newManifestFile(raw []byte) *manifestFile {
	return &manifestFile{Reader: bytes.NewReader(raw), size: int64(len(raw))}
}

func (f *manifestFile) Stat() (fs.FileInfo, error) { return manifestInfo(f.size), nil }
func (f *manifestFile) Close() error               { return nil }

type manifestInfo int64

func (i manifestInfo) Name() string       { return "manifest.json" }
func (i manifestInfo) Size() int64        { return int64(i) }
func (i manifestInfo) Mode() fs.FileMode  { return 0o444 }
func (i manifestInfo) ModTime() time.Time { return time.Time{} }
func (i manifestInfo) IsDir() bool        { return false }
func (i manifestInfo) Sys() any           { return nil }
