package asar

import (
	"context"

	asarcore "github.com/meigma/asar/core"
	"github.com/meigma/asar/registry"
)

// Archive is a pulled archive. It embeds *core.Reader, so all Reader
// methods are directly accessible; file data is fetched on demand.
type Archive = registry.Archive

// Pull opens an archive in the registry, reading only its manifest and
// header.
//
// The client's content cache, block cache and logger apply to the returned
// archive. Use [PullWithSkipCache] to bypass the manifest cache.
func (c *Client) Pull(ctx context.Context, ref string, opts ...PullOption) (*Archive, error) {
	cfg := pullConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.log().Info("pulling from registry", "ref", ref)

	var readerOpts []asarcore.ReaderOption
	if c.contentCache != nil {
		readerOpts = append(readerOpts, asarcore.WithCache(c.contentCache))
	}
	if c.logger != nil {
		readerOpts = append(readerOpts, asarcore.WithLogger(c.logger))
	}
	readerOpts = append(readerOpts, cfg.readerOpts...)

	pullOpts := []registry.PullOption{registry.WithReaderOptions(readerOpts...)}
	if cfg.skipCache {
		pullOpts = append(pullOpts, registry.WithPullSkipCache())
	}
	if c.blockCache != nil && !cfg.skipBlockCache {
		pullOpts = append(pullOpts, registry.WithBlockCache(c.blockCache))
	}
	if cfg.progress != nil {
		pullOpts = append(pullOpts, registry.WithPullProgress(cfg.progress))
	}
	return c.reg.Pull(ctx, ref, pullOpts...)
}
