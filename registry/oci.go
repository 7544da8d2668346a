package registry

import (
	"context"
	"io"
	"net/http"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// OCIClient is the set of low-level registry operations the archive client
// needs. The oras package provides the default implementation; tests
// substitute their own.
type OCIClient interface {
	// PushBlob uploads a blob whose digest and size are already known.
	PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error

	// FetchBlob opens a blob. The caller closes the reader.
	FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error)

	// PushManifest pushes a manifest under tag.
	PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error)

	// FetchManifest fetches a manifest by descriptor, returning its raw bytes too.
	FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error)

	// Resolve resolves a tag or digest to a descriptor.
	Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error)

	// Tag points tag at desc.
	Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error

	// BlobURL returns the URL for range reads of a blob.
	BlobURL(repoRef, digest string) (string, error)

	// AuthHeaders returns headers that authenticate direct blob reads.
	AuthHeaders(ctx context.Context, repoRef string) (http.Header, error)

	// InvalidateAuthHeaders drops cached auth headers for the repository host.
	InvalidateAuthHeaders(repoRef string) error
}

// authClientProvider is implemented by OCI clients that can hand out an
// HTTP client performing the registry's token exchange.
type authClientProvider interface {
	AuthClient(repoRef string) (*http.Client, error)
}
