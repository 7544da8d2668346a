package asar

import asarcore "github.com/meigma/asar/core"

// PullOption configures a Pull operation.
type PullOption func(*pullConfig)

type pullConfig struct {
	skipCache      bool
	skipBlockCache bool
	readerOpts     []asarcore.ReaderOption
	progress       ProgressFunc
}

// PullWithSkipCache bypasses the manifest cache for this pull.
func PullWithSkipCache() PullOption {
	return func(cfg *pullConfig) {
		cfg.skipCache = true
	}
}

// PullWithoutBlockCache reads the archive directly even when the client
// has a block cache. Useful for archives read once, front to back.
func PullWithoutBlockCache() PullOption {
	return func(cfg *pullConfig) {
		cfg.skipBlockCache = true
	}
}

// PullWithVerifyIntegrity checks file content against the integrity hashes
// recorded in the header.
func PullWithVerifyIntegrity(enabled bool) PullOption {
	return func(cfg *pullConfig) {
		cfg.readerOpts = append(cfg.readerOpts, asarcore.WithVerifyIntegrity(enabled))
	}
}

// PullWithMaxHeaderSize limits the header size accepted from the registry.
func PullWithMaxHeaderSize(limit int64) PullOption {
	return func(cfg *pullConfig) {
		cfg.readerOpts = append(cfg.readerOpts, asarcore.WithMaxHeaderSize(limit))
	}
}

// PullWithReaderOptions passes options to the archive Reader.
func PullWithReaderOptions(opts ...asarcore.ReaderOption) PullOption {
	return func(cfg *pullConfig) {
		cfg.readerOpts = append(cfg.readerOpts, opts...)
	}
}

// PullWithProgress receives manifest and header fetch events.
func PullWithProgress(fn ProgressFunc) PullOption {
	return func(cfg *pullConfig) {
		cfg.progress = fn
	}
}
