package asar

import (
	"log/slog"

	corecache "github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/registry"
	"github.com/meigma/asar/registry/oras"
)

// Client pushes and pulls archives in OCI registries.
//
// Client wraps a registry client and adds archive creation and the
// content and block caches used when reading pulled archives.
type Client struct {
	// orasOpts are options for the underlying ORAS client.
	orasOpts []oras.Option
	oci      registry.OCIClient

	contentCache  corecache.Cache      // file content, keyed by integrity digest
	blockCache    corecache.BlockCache // HTTP range blocks
	manifestCache corecache.Cache      // manifests, keyed by manifest digest

	logger *slog.Logger
	reg    *registry.Client
}

// NewClient creates a client with the given options.
//
// If no authentication is configured, anonymous access is used.
// Use [WithDockerConfig] to read credentials from ~/.docker/config.json.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	regOpts := []registry.Option{registry.WithLogger(c.logger)}
	if c.oci != nil {
		regOpts = append(regOpts, registry.WithOCIClient(c.oci))
	} else {
		orasOpts := c.orasOpts
		if c.logger != nil {
			orasOpts = append(orasOpts, oras.WithLogger(c.logger))
		}
		regOpts = append(regOpts, registry.WithOCIClient(oras.New(orasOpts...)))
	}
	if c.manifestCache != nil {
		regOpts = append(regOpts, registry.WithManifestCache(c.manifestCache))
	}
	c.reg = registry.New(regOpts...)
	return c, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
