package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	asar "github.com/meigma/asar/core"
)

// Push uploads a finalized archive and tags its manifest.
//
// content must hold exactly size bytes of archive. The ref must include a
// tag (e.g. "registry.com/repo:v1.0.0"); WithTags applies more. The archive
// digest is computed by reading content once unless WithArchiveDigest
// supplies it.
func (c *Client) Push(ctx context.Context, ref string, content io.ReaderAt, size int64, opts ...PushOption) (*ArchiveManifest, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if size < 0 {
		return nil, fmt.Errorf("push: negative archive size %d", size)
	}

	tag, err := requireTag(ref)
	if err != nil {
		return nil, err
	}
	c.log().Info("pushing archive", "ref", ref, "size", size)

	archiveDigest := cfg.digest
	if archiveDigest == "" {
		archiveDigest, err = digest.SHA256.FromReader(io.NewSectionReader(content, 0, size))
		if err != nil {
			return nil, fmt.Errorf("digest archive: %w", err)
		}
	} else if err := archiveDigest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: archive digest: %v", ErrDigestMismatch, err)
	}

	configDesc, err := c.pushEmptyConfig(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("push config: %w", err)
	}

	archiveDesc := ocispec.Descriptor{
		MediaType: MediaTypeArchive,
		Digest:    archiveDigest,
		Size:      size,
	}
	var body io.Reader = io.NewSectionReader(content, 0, size)
	if cfg.progress != nil {
		body = &progressReader{r: body, total: uint64(size), fn: cfg.progress} //nolint:gosec // size checked non-negative
	}
	if err := c.oci.PushBlob(ctx, ref, &archiveDesc, body); err != nil {
		return nil, fmt.Errorf("push archive blob: %w", mapOCIError(err))
	}

	manifest := buildManifest(&configDesc, &archiveDesc, cfg.annotations)
	manifestDesc, err := c.oci.PushManifest(ctx, ref, tag, &manifest)
	if err != nil {
		return nil, fmt.Errorf("push manifest: %w", mapOCIError(err))
	}
	for _, extra := range cfg.tags {
		if err := c.oci.Tag(ctx, ref, &manifestDesc, extra); err != nil {
			return nil, fmt.Errorf("tag %q: %w", extra, mapOCIError(err))
		}
	}
	c.log().Debug("pushed archive", "ref", ref, "manifest", manifestDesc.Digest.String())

	raw, err := json.Marshal(&manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return parseArchiveManifest(&manifest, raw, manifestDesc.Digest)
}

// pushEmptyConfig pushes the empty JSON config blob required by OCI manifests.
func (c *Client) pushEmptyConfig(ctx context.Context, ref string) (ocispec.Descriptor, error) {
	desc := ocispec.DescriptorEmptyJSON
	if err := c.oci.PushBlob(ctx, ref, &desc, bytes.NewReader(desc.Data)); err != nil {
		return ocispec.Descriptor{}, mapOCIError(err)
	}
	desc.Data = nil
	return desc, nil
}

// buildManifest creates the manifest of an archive artifact. The creation
// time annotation is set unless the caller supplied one.
func buildManifest(configDesc, archiveDesc *ocispec.Descriptor, custom map[string]string) ocispec.Manifest {
	annotations := make(map[string]string, len(custom)+1)
	maps.Copy(annotations, custom)
	if _, ok := annotations[ocispec.AnnotationCreated]; !ok {
		annotations[ocispec.AnnotationCreated] = time.Now().UTC().Format(time.RFC3339)
	}

	return ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: ArtifactType,
		Config:       *configDesc,
		Layers:       []ocispec.Descriptor{*archiveDesc},
		Annotations:  annotations,
	}
}

// progressReader reports StagePushingArchive events as the blob uploads.
type progressReader struct {
	r     io.Reader
	done  uint64
	total uint64
	fn    asar.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += uint64(n)
		p.fn(asar.ProgressEvent{
			Stage:      asar.StagePushingArchive,
			BytesDone:  p.done,
			BytesTotal: p.total,
		})
	}
	return n, err
}
