package registry

// Media types for archives in OCI registries.
const (
	// ArtifactType identifies archive manifests as an OCI 1.1 artifact type.
	ArtifactType = "application/vnd.meigma.asar.archive.v1"

	// MediaTypeArchive is the media type of the single layer holding the
	// archive bytes, header included.
	MediaTypeArchive = "application/vnd.meigma.asar.v1"
)
