//go:build integration

// Package integration provides end-to-end tests for the asar library.
//
// These tests require Docker and run a real OCI registry using testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
