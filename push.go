package asar

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"

	asarcore "github.com/meigma/asar/core"
	"github.com/meigma/asar/registry"
)

// Push finalizes w and pushes the archive to the registry.
//
// The archive is spooled to a temporary file while its digest is computed,
// so file sources are read once. The ref must include a tag
// (e.g., "registry.com/repo:v1.0.0").
func (c *Client) Push(ctx context.Context, ref string, w *asarcore.Writer, opts ...PushOption) (*Manifest, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	tmp, err := os.CreateTemp(cfg.tempDir, "asar-push-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	digester := digest.SHA256.Digester()
	size, err := w.WriteTo(io.MultiWriter(tmp, digester.Hash()))
	if err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}
	c.log().Debug("spooled archive", "size", size, "digest", digester.Digest().String())

	pushOpts := append(cfg.registryOpts(), registry.WithArchiveDigest(digester.Digest()))
	return c.reg.Push(ctx, ref, tmp, size, pushOpts...)
}

// PushFile pushes an archive file that already exists on disk.
func (c *Client) PushFile(ctx context.Context, ref, path string, opts ...PushOption) (*Manifest, error) {
	cfg := pushConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	f, err := os.Open(path) //nolint:gosec // caller-provided path
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("push %s: not a regular file", path)
	}
	return c.reg.Push(ctx, ref, f, info.Size(), cfg.registryOpts()...)
}
