package registry

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	orasregistry "oras.land/oras-go/v2/registry"
)

// parseRef returns the tag or digest part of ref.
func parseRef(ref string) (string, error) {
	r, err := orasregistry.ParseReference(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidReference, ref, err)
	}
	return r.Reference, nil
}

// requireTag returns the tag of ref, rejecting digest references.
func requireTag(ref string) (string, error) {
	tag, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	if tag == "" || isDigest(tag) {
		return "", fmt.Errorf("%w: %q must include a tag", ErrInvalidReference, ref)
	}
	return tag, nil
}

// isDigest reports whether a reference is a digest rather than a tag.
// Tags cannot contain a colon.
func isDigest(reference string) bool {
	return strings.Contains(reference, ":")
}

// descriptorFromDigest builds a descriptor with unknown size, which
// FetchManifest accepts up to its own limit.
func descriptorFromDigest(dgst string) (ocispec.Descriptor, error) {
	d, err := digest.Parse(dgst)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: invalid digest %q", ErrInvalidReference, dgst)
	}
	return ocispec.Descriptor{Digest: d}, nil
}
