// Package oras talks to OCI registries through the ORAS library.
//
// Client knows nothing about archives: it pushes and fetches blobs and
// image manifests, resolves and creates tags, and hands out the URL and
// credentials needed to read a blob with HTTP range requests.
package oras
