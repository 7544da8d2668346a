package registry

import (
	"context"
	"fmt"

	asar "github.com/meigma/asar/core"
	"github.com/meigma/asar/core/cache"
	asarhttp "github.com/meigma/asar/core/http"
)

// Archive is a pulled archive. Files are fetched on demand with HTTP range
// requests against the registry blob.
type Archive struct {
	*asar.Reader
	manifest *ArchiveManifest
}

// Manifest returns the manifest the archive was pulled from.
func (a *Archive) Manifest() *ArchiveManifest {
	return a.manifest
}

// Pull opens an archive stored in an OCI registry.
//
// Only the manifest and the archive header are read; Pull returns once the
// header is loaded. The archive source is identified by its blob digest,
// so header and block caches stay valid across tags.
func (c *Client) Pull(ctx context.Context, ref string, opts ...PullOption) (*Archive, error) {
	cfg := pullConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.log().Info("pulling archive", "ref", ref)

	reportPullProgress(cfg.progress, asar.StageFetchingManifest, 0, 0)
	var fetchOpts []FetchOption
	if cfg.skipCache {
		fetchOpts = append(fetchOpts, WithSkipCache())
	}
	manifest, err := c.Fetch(ctx, ref, fetchOpts...)
	if err != nil {
		return nil, err
	}
	reportPullProgress(cfg.progress, asar.StageFetchingManifest, 1, 1)

	src, err := c.archiveSource(ctx, ref, manifest, &cfg)
	if err != nil {
		return nil, err
	}

	r := asar.NewReader(src, cfg.readerOpts...)
	reportPullProgress(cfg.progress, asar.StageFetchingHeader, 0, 0)
	if err := r.LoadHeader(ctx); err != nil {
		return nil, fmt.Errorf("load archive header: %w", err)
	}
	if size, err := r.HeaderSize(); err == nil {
		reportPullProgress(cfg.progress, asar.StageFetchingHeader, uint64(size), uint64(size)) //nolint:gosec // sizes are non-negative
	}

	return &Archive{Reader: r, manifest: manifest}, nil
}

// archiveSource opens the archive blob for range reads, authenticated the
// way the OCI client supports, and applies the block cache.
func (c *Client) archiveSource(ctx context.Context, ref string, manifest *ArchiveManifest, cfg *pullConfig) (asar.RangeSource, error) {
	desc := manifest.ArchiveDescriptor()
	blobURL, err := c.oci.BlobURL(ref, desc.Digest.String())
	if err != nil {
		return nil, fmt.Errorf("build archive blob URL: %w", mapOCIError(err))
	}

	sourceOpts := []asarhttp.Option{asarhttp.WithSourceID(desc.Digest.String())}
	if cfg.conditional {
		sourceOpts = append(sourceOpts, asarhttp.WithConditionalHeaders())
	}
	if provider, ok := c.oci.(authClientProvider); ok {
		authClient, authErr := provider.AuthClient(ref)
		if authErr != nil {
			return nil, fmt.Errorf("get auth client: %w", mapOCIError(authErr))
		}
		sourceOpts = append(sourceOpts, asarhttp.WithClient(authClient))
	} else {
		headers, headerErr := c.oci.AuthHeaders(ctx, ref)
		if headerErr != nil {
			return nil, fmt.Errorf("get auth headers: %w", mapOCIError(headerErr))
		}
		sourceOpts = append(sourceOpts, asarhttp.WithHeaders(headers))
	}

	src, err := asarhttp.NewSource(ctx, blobURL, sourceOpts...)
	if err != nil {
		if _, ok := c.oci.(authClientProvider); !ok {
			_ = c.oci.InvalidateAuthHeaders(ref) //nolint:errcheck // best-effort so a retry re-reads credentials
		}
		return nil, fmt.Errorf("open archive blob: %w", err)
	}
	if src.Size() != desc.Size {
		return nil, fmt.Errorf("%w: blob is %d bytes, manifest says %d", ErrSizeMismatch, src.Size(), desc.Size)
	}
	c.log().Debug("opened archive blob", "digest", desc.Digest.String(), "size", desc.Size)

	if cfg.blockCache == nil {
		return src, nil
	}
	wrapped, err := cfg.blockCache.Wrap(src, cfg.wrapOpts...)
	if err != nil {
		return nil, fmt.Errorf("wrap block cache: %w", err)
	}
	return sizedSource{Source: wrapped, size: src.Size()}, nil
}

// sizedSource keeps the blob size visible through a block cache wrapper.
type sizedSource struct {
	cache.Source
	size int64
}

func (s sizedSource) Size() int64 { return s.size }

func reportPullProgress(fn asar.ProgressFunc, stage asar.ProgressStage, bytesDone, bytesTotal uint64) {
	if fn == nil {
		return
	}
	fn(asar.ProgressEvent{
		Stage:      stage,
		BytesDone:  bytesDone,
		BytesTotal: bytesTotal,
	})
}
