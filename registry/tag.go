package registry

import (
	"context"
)

// Tag points the tag in ref at an existing manifest.
//
// dgst is the full manifest digest (e.g. "sha256:abc..."). The digest is
// resolved first because ORAS needs the manifest media type to tag it.
func (c *Client) Tag(ctx context.Context, ref, dgst string) error {
	tag, err := requireTag(ref)
	if err != nil {
		return err
	}
	if _, err := descriptorFromDigest(dgst); err != nil {
		return err
	}

	desc, err := c.oci.Resolve(ctx, ref, dgst)
	if err != nil {
		return mapOCIError(err)
	}
	return mapOCIError(c.oci.Tag(ctx, ref, &desc, tag))
}
