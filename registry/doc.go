// Package registry pushes and pulls archives to and from OCI registries.
//
// An archive is stored as a single layer of an OCI 1.1 artifact manifest,
// unchanged, so a pulled archive is read lazily with HTTP range requests
// against the layer blob: the header costs two requests and each file one
// more. The oras subpackage performs the low-level registry operations.
package registry
