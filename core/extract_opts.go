package asar

import "github.com/meigma/asar/core/internal/batch"

// ExtractOption configures Extract and ExtractDir.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	overwrite    bool
	preserveMode bool
	directWrites bool
	workers      int
}

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithPreserveMode writes executable files with mode 0755 and all
// other files with 0644. By default, files use the umask defaults.
func ExtractWithPreserveMode(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveMode = preserve
	}
}

// ExtractWithDirectWrites writes straight to the final paths instead of
// renaming temp files into place.
func ExtractWithDirectWrites(enabled bool) ExtractOption {
	return func(c *extractConfig) {
		c.directWrites = enabled
	}
}

// ExtractWithWorkers sets how many runs of adjacent files are read
// concurrently. By default, and for values <= 0, runs are read one after
// another so a single range stream is open at a time. Files that are
// adjacent in the archive always share one stream and are written in order.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

func newExtractConfig(opts []ExtractOption) extractConfig {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c *extractConfig) sink(destDir string) *batch.FileSink {
	return batch.NewFileSink(destDir,
		batch.WithOverwrite(c.overwrite),
		batch.WithPreserveMode(c.preserveMode),
		batch.WithDirectWrites(c.directWrites),
	)
}
