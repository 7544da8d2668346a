package registry

import (
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ArchiveManifest wraps the OCI manifest of a pushed archive.
type ArchiveManifest struct {
	raw         ocispec.Manifest
	rawBytes    []byte
	digest      digest.Digest
	archiveDesc ocispec.Descriptor
	created     time.Time
}

// ArchiveDescriptor returns the descriptor of the archive layer.
func (m *ArchiveManifest) ArchiveDescriptor() ocispec.Descriptor {
	return m.archiveDesc
}

// Digest returns the manifest digest.
func (m *ArchiveManifest) Digest() digest.Digest {
	return m.digest
}

// Size returns the archive size in bytes.
func (m *ArchiveManifest) Size() int64 {
	return m.archiveDesc.Size
}

// Annotations returns the manifest annotations.
func (m *ArchiveManifest) Annotations() map[string]string {
	return m.raw.Annotations
}

// Created returns the org.opencontainers.image.created annotation, or the
// zero time when it is missing or malformed.
func (m *ArchiveManifest) Created() time.Time {
	return m.created
}

// Raw returns the underlying OCI manifest.
func (m *ArchiveManifest) Raw() ocispec.Manifest {
	return m.raw
}

// Bytes returns the manifest exactly as stored in the registry.
func (m *ArchiveManifest) Bytes() []byte {
	return m.rawBytes
}

// parseArchiveManifest validates manifest as an archive manifest whose
// serialized form is raw.
func parseArchiveManifest(manifest *ocispec.Manifest, raw []byte, dgst digest.Digest) (*ArchiveManifest, error) {
	if manifest.MediaType != ocispec.MediaTypeImageManifest {
		return nil, fmt.Errorf("%w: unexpected manifest media type %q", ErrInvalidManifest, manifest.MediaType)
	}
	if manifest.ArtifactType != ArtifactType {
		return nil, fmt.Errorf("%w: unexpected artifact type %q", ErrInvalidManifest, manifest.ArtifactType)
	}

	var archiveDesc ocispec.Descriptor
	found := false
	for _, layer := range manifest.Layers {
		if layer.MediaType != MediaTypeArchive {
			continue
		}
		if found {
			return nil, fmt.Errorf("%w: multiple archive layers", ErrInvalidManifest)
		}
		archiveDesc = layer
		found = true
	}
	if !found {
		return nil, ErrMissingArchive
	}
	if len(manifest.Layers) != 1 {
		return nil, fmt.Errorf("%w: expected 1 layer, got %d", ErrInvalidManifest, len(manifest.Layers))
	}
	if err := archiveDesc.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: archive digest: %v", ErrInvalidManifest, err)
	}
	if archiveDesc.Size < 0 {
		return nil, fmt.Errorf("%w: negative archive size", ErrInvalidManifest)
	}

	var created time.Time
	if ts, ok := manifest.Annotations[ocispec.AnnotationCreated]; ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			created = t
		}
	}

	return &ArchiveManifest{
		raw:         *manifest,
		rawBytes:    raw,
		digest:      dgst,
		archiveDesc: archiveDesc,
		created:     created,
	}, nil
}
