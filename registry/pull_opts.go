package registry

import (
	asar "github.com/meigma/asar/core"
	"github.com/meigma/asar/core/cache"
)

// PullOption configures a Pull operation.
type PullOption func(*pullConfig)

type pullConfig struct {
	skipCache   bool
	readerOpts  []asar.ReaderOption
	progress    asar.ProgressFunc
	blockCache  cache.BlockCache
	wrapOpts    []cache.WrapOption
	conditional bool
}

// WithReaderOptions passes options to the archive Reader, such as a
// content cache or integrity verification.
func WithReaderOptions(opts ...asar.ReaderOption) PullOption {
	return func(cfg *pullConfig) {
		cfg.readerOpts = append(cfg.readerOpts, opts...)
	}
}

// WithPullSkipCache bypasses the manifest cache.
func WithPullSkipCache() PullOption {
	return func(cfg *pullConfig) {
		cfg.skipCache = true
	}
}

// WithPullProgress receives StageFetchingManifest and StageFetchingHeader
// events.
func WithPullProgress(fn asar.ProgressFunc) PullOption {
	return func(cfg *pullConfig) {
		cfg.progress = fn
	}
}

// WithBlockCache wraps the remote archive in a block cache, which pays
// off for scattered reads of small files.
func WithBlockCache(bc cache.BlockCache, opts ...cache.WrapOption) PullOption {
	return func(cfg *pullConfig) {
		cfg.blockCache = bc
		cfg.wrapOpts = opts
	}
}

// WithConditionalRanges sends If-Match on range reads so a blob replaced
// mid-read fails instead of mixing content. Some registries reject
// conditional range requests.
func WithConditionalRanges() PullOption {
	return func(cfg *pullConfig) {
		cfg.conditional = true
	}
}
