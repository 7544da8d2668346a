package registry

import (
	"maps"

	"github.com/opencontainers/go-digest"

	asar "github.com/meigma/asar/core"
)

// PushOption configures a Push operation.
type PushOption func(*pushConfig)

type pushConfig struct {
	tags        []string
	annotations map[string]string
	progress    asar.ProgressFunc
	digest      digest.Digest
}

// WithTags applies additional tags to the pushed manifest.
//
// The tag in the ref is always applied first.
func WithTags(tags ...string) PushOption {
	return func(cfg *pushConfig) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithAnnotations sets custom manifest annotations.
//
// org.opencontainers.image.created is set automatically unless supplied.
func WithAnnotations(annotations map[string]string) PushOption {
	return func(cfg *pushConfig) {
		if cfg.annotations == nil {
			cfg.annotations = make(map[string]string, len(annotations))
		}
		maps.Copy(cfg.annotations, annotations)
	}
}

// WithProgress receives StagePushingArchive events during the upload.
func WithProgress(fn asar.ProgressFunc) PushOption {
	return func(cfg *pushConfig) {
		cfg.progress = fn
	}
}

// WithArchiveDigest supplies the archive digest when the caller already
// computed it, skipping the extra read of the content.
func WithArchiveDigest(d digest.Digest) PushOption {
	return func(cfg *pushConfig) {
		cfg.digest = d
	}
}
