package asar

import (
	"maps"

	"github.com/meigma/asar/registry"
)

// PushOption configures a Push operation.
type PushOption func(*pushConfig)

type pushConfig struct {
	tags        []string
	annotations map[string]string
	progress    ProgressFunc
	tempDir     string
}

func (cfg *pushConfig) registryOpts() []registry.PushOption {
	var opts []registry.PushOption
	if len(cfg.tags) > 0 {
		opts = append(opts, registry.WithTags(cfg.tags...))
	}
	if cfg.annotations != nil {
		opts = append(opts, registry.WithAnnotations(cfg.annotations))
	}
	if cfg.progress != nil {
		opts = append(opts, registry.WithProgress(cfg.progress))
	}
	return opts
}

// PushWithTags applies additional tags to the pushed manifest.
func PushWithTags(tags ...string) PushOption {
	return func(cfg *pushConfig) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// PushWithAnnotations sets custom manifest annotations.
func PushWithAnnotations(annotations map[string]string) PushOption {
	return func(cfg *pushConfig) {
		if cfg.annotations == nil {
			cfg.annotations = make(map[string]string, len(annotations))
		}
		maps.Copy(cfg.annotations, annotations)
	}
}

// PushWithProgress receives upload progress events.
func PushWithProgress(fn ProgressFunc) PushOption {
	return func(cfg *pushConfig) {
		cfg.progress = fn
	}
}

// PushWithTempDir sets the directory used to spool archives built by a
// Writer. The default is os.TempDir.
func PushWithTempDir(dir string) PushOption {
	return func(cfg *pushConfig) {
		cfg.tempDir = dir
	}
}
