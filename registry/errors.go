package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrNotFound is returned when no archive exists at the reference.
	ErrNotFound = errors.New("registry: not found")

	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = errors.New("registry: invalid reference")

	// ErrInvalidManifest is returned when a manifest is not an archive manifest.
	ErrInvalidManifest = errors.New("registry: invalid archive manifest")

	// ErrMissingArchive is returned when the manifest has no archive layer.
	ErrMissingArchive = errors.New("registry: missing archive layer")

	// ErrDigestMismatch is returned when content does not match its expected digest.
	ErrDigestMismatch = errors.New("registry: digest mismatch")

	// ErrSizeMismatch is returned when the remote archive size differs from
	// its descriptor.
	ErrSizeMismatch = errors.New("registry: size mismatch")
)
