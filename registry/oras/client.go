package oras

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// DefaultUserAgent is sent with every registry request unless overridden.
const DefaultUserAgent = "asar-client/1.0"

// maxManifestSize bounds manifests fetched by digest when the expected size
// is unknown.
const maxManifestSize = 4 << 20

// Client performs OCI registry operations through ORAS.
//
// A single auth.Client is shared across repositories so bearer tokens are
// reused between requests.
type Client struct {
	plainHTTP       bool
	userAgent       string
	anonymous       bool // skip credential lookup entirely
	credStore       credentials.Store
	authClient      *auth.Client
	authHeaderCache *authHeaderCache
	logger          *slog.Logger
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		userAgent:       DefaultUserAgent,
		authHeaderCache: newAuthHeaderCache(defaultAuthHeaderCacheTTL),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if c.anonymous || c.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return c.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}
	return c
}

// log returns the logger, falling back to a discard logger if nil.
func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

func (c *Client) repository(ref string) (*remote.Repository, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidReference, ref, err)
	}
	repo.PlainHTTP = c.plainHTTP
	repo.Client = c.authClient
	return repo, nil
}

func parseRef(ref string) (registry.Reference, error) {
	r, err := registry.ParseReference(ref)
	if err != nil {
		return registry.Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	return r, nil
}

// PushBlob uploads exactly desc.Size bytes from r under desc.Digest.
// Blobs that already exist in the repository are not uploaded again.
func (c *Client) PushBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor, r io.Reader) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: content reader is nil", ErrInvalidDescriptor)
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return err
	}

	if exists, err := repo.Exists(ctx, *desc); err == nil && exists {
		c.log().Debug("blob already present", "digest", desc.Digest.String())
		return nil
	}
	c.log().Debug("pushing blob", "digest", desc.Digest.String(), "size", desc.Size)
	if err := repo.Push(ctx, *desc, r); err != nil {
		if errors.Is(err, errdef.ErrAlreadyExists) {
			return nil
		}
		return mapError(err)
	}
	return nil
}

// FetchBlob opens the blob described by desc. The caller closes the reader.
func (c *Client) FetchBlob(ctx context.Context, repoRef string, desc *ocispec.Descriptor) (io.ReadCloser, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return nil, err
	}
	rc, err := repo.Fetch(ctx, *desc)
	if err != nil {
		return nil, mapError(err)
	}
	return rc, nil
}

// PushManifest serializes manifest and pushes it under tag.
func (c *Client) PushManifest(ctx context.Context, repoRef, tag string, manifest *ocispec.Manifest) (ocispec.Descriptor, error) {
	if manifest == nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: manifest is nil", ErrManifestInvalid)
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	raw, err := json.Marshal(manifest)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("marshal manifest: %w", err)
	}
	desc := ocispec.Descriptor{
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: manifest.ArtifactType,
		Digest:       digest.FromBytes(raw),
		Size:         int64(len(raw)),
	}
	if err := repo.PushReference(ctx, desc, bytes.NewReader(raw), tag); err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}
	c.log().Debug("pushed manifest", "digest", desc.Digest.String(), "tag", tag)
	return desc, nil
}

// FetchManifest fetches and decodes the image manifest at expected.Digest.
//
// The raw bytes are returned alongside the decoded manifest and are
// verified against the digest. A zero expected.Size accepts any size up to
// an internal limit.
func (c *Client) FetchManifest(ctx context.Context, repoRef string, expected *ocispec.Descriptor) (ocispec.Manifest, []byte, error) {
	if err := validateDescriptor(expected); err != nil {
		return ocispec.Manifest{}, nil, err
	}
	if expected.MediaType != "" && expected.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: unsupported media type %s", ErrManifestInvalid, expected.MediaType)
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return ocispec.Manifest{}, nil, err
	}

	desc, rc, err := repo.FetchReference(ctx, expected.Digest.String())
	if err != nil {
		return ocispec.Manifest{}, nil, mapError(err)
	}
	defer rc.Close()

	if expected.MediaType == "" && desc.MediaType != "" && desc.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: unsupported media type %s", ErrManifestInvalid, desc.MediaType)
	}

	limit := expected.Size
	if limit <= 0 {
		limit = maxManifestSize
	}
	raw, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return ocispec.Manifest{}, nil, mapError(err)
	}
	if int64(len(raw)) > limit || (expected.Size > 0 && int64(len(raw)) != expected.Size) {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: manifest is %d bytes", ErrSizeMismatch, len(raw))
	}
	if got := expected.Digest.Algorithm().FromBytes(raw); got != expected.Digest {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: expected %s, got %s", ErrDigestMismatch, expected.Digest, got)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ocispec.Manifest{}, nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}
	return manifest, raw, nil
}

// Resolve resolves a tag or digest to a descriptor.
func (c *Client) Resolve(ctx context.Context, repoRef, ref string) (ocispec.Descriptor, error) {
	repo, err := c.repository(repoRef)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	desc, err := repo.Resolve(ctx, ref)
	if err != nil {
		return ocispec.Descriptor{}, mapError(err)
	}
	return desc, nil
}

// Tag points tag at the manifest described by desc.
func (c *Client) Tag(ctx context.Context, repoRef string, desc *ocispec.Descriptor, tag string) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}
	repo, err := c.repository(repoRef)
	if err != nil {
		return err
	}
	if err := repo.Tag(ctx, *desc, tag); err != nil {
		return mapError(err)
	}
	return nil
}

// BlobURL returns the distribution API URL of a blob, for range requests.
func (c *Client) BlobURL(repoRef, dgst string) (string, error) {
	ref, err := parseRef(repoRef)
	if err != nil {
		return "", err
	}
	scheme := "https"
	if c.plainHTTP {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/v2/%s/blobs/%s", scheme, ref.Host(), ref.Repository, dgst), nil
}

// AuthHeaders returns headers carrying the stored credentials for the
// repository host.
//
// Basic credentials and static bearer tokens are sent as-is; no token
// exchange is performed. Use AuthClient for registries that require it.
// After a 401, call InvalidateAuthHeaders before retrying.
func (c *Client) AuthHeaders(ctx context.Context, repoRef string) (http.Header, error) {
	ref, err := parseRef(repoRef)
	if err != nil {
		return nil, err
	}
	host := ref.Host()

	headers := make(http.Header)
	headers.Set("User-Agent", c.userAgent)
	if c.anonymous || c.credStore == nil {
		return headers, nil
	}

	if c.authHeaderCache != nil {
		if value, ok := c.authHeaderCache.get(host); ok {
			if value != "" {
				headers.Set("Authorization", value)
			}
			return headers, nil
		}
	}

	cred, err := c.credStore.Get(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("get credentials for %s: %w", host, err)
	}
	if isEmptyCredential(cred) {
		return headers, nil
	}

	var value string
	switch {
	case cred.AccessToken != "":
		value = "Bearer " + cred.AccessToken
	case cred.Username != "":
		value = basicAuth(cred.Username, cred.Password)
	}
	if value != "" {
		headers.Set("Authorization", value)
		if c.authHeaderCache != nil {
			c.authHeaderCache.set(host, value)
		}
	}
	return headers, nil
}

// InvalidateAuthHeaders drops cached auth headers for the repository host.
func (c *Client) InvalidateAuthHeaders(repoRef string) error {
	if c.authHeaderCache == nil {
		return nil
	}
	ref, err := parseRef(repoRef)
	if err != nil {
		return err
	}
	c.authHeaderCache.invalidate(ref.Host())
	return nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func validateDescriptor(desc *ocispec.Descriptor) error {
	if desc == nil {
		return fmt.Errorf("%w: descriptor is nil", ErrInvalidDescriptor)
	}
	if desc.Size < 0 {
		return fmt.Errorf("%w: negative size %d", ErrInvalidDescriptor, desc.Size)
	}
	if desc.Digest == "" {
		return fmt.Errorf("%w: empty digest", ErrInvalidDescriptor)
	}
	if err := desc.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: invalid digest %q: %v", ErrInvalidDescriptor, desc.Digest, err)
	}
	return nil
}

// mapError maps ORAS errors to package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
	}
	return err
}
