package registry

import (
	"log/slog"

	"github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/registry/oras"
)

// Client pushes, fetches, pulls and tags archives in OCI registries.
type Client struct {
	oci           OCIClient
	manifestCache cache.Cache
	logger        *slog.Logger

	// orasOpts are passed to the default ORAS client when no OCIClient is
	// provided.
	orasOpts []oras.Option
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// New creates a Client.
//
// Without WithOCIClient, an ORAS client is created from the pass-through
// options (WithPlainHTTP, WithDockerConfig and so on).
func New(opts ...Option) *Client {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.oci == nil {
		orasOpts := c.orasOpts
		if c.logger != nil {
			orasOpts = append(orasOpts, oras.WithLogger(c.logger))
		}
		c.oci = oras.New(orasOpts...)
	}
	return c
}
