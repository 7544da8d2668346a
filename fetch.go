package asar

import (
	"context"

	"github.com/meigma/asar/registry"
)

// Manifest describes an archive stored in an OCI registry.
type Manifest = registry.ArchiveManifest

// FetchOption configures a Fetch operation.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	skipCache bool
}

// FetchWithSkipCache bypasses the manifest cache for this fetch.
//
// The fetched manifest is still added to the cache after retrieval.
func FetchWithSkipCache() FetchOption {
	return func(cfg *fetchConfig) {
		cfg.skipCache = true
	}
}

// Fetch retrieves the manifest of an archive without reading the archive.
//
// This is useful for inspecting archive metadata or checking if an archive
// exists.
func (c *Client) Fetch(ctx context.Context, ref string, opts ...FetchOption) (*Manifest, error) {
	cfg := fetchConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.log().Debug("fetching manifest", "ref", ref)

	var fetchOpts []registry.FetchOption
	if cfg.skipCache {
		fetchOpts = append(fetchOpts, registry.WithSkipCache())
	}
	return c.reg.Fetch(ctx, ref, fetchOpts...)
}

// Tag creates or updates a tag pointing to an existing manifest.
//
// The ref specifies the repository and new tag (e.g., "registry.com/repo:latest").
// The digest must be the full digest of an existing manifest (e.g., "sha256:abc...").
func (c *Client) Tag(ctx context.Context, ref, digest string) error {
	return c.reg.Tag(ctx, ref, digest)
}
