// Package asar reads and writes ASAR archives and moves them through OCI
// registries.
//
// An archive is a small JSON header describing a directory tree followed by
// the concatenated contents of its files. Because every file is a single
// contiguous range, an archive stored in a registry can be read file by
// file with HTTP range requests, without downloading the whole archive.
//
// This package provides the high-level [Client] for pushing and pulling
// archives. For archive operations without a registry, use the [core]
// subpackage; its most common types are re-exported here.
//
// # Quick Start
//
// Build and push an archive:
//
//	c, err := asar.NewClient(asar.WithDockerConfig())
//	if err != nil {
//	    return err
//	}
//	w := asar.NewWriter()
//	if err := w.AddFile("main.js", "./dist/main.js"); err != nil {
//	    return err
//	}
//	manifest, err := c.Push(ctx, "ghcr.io/myorg/app:v1", w)
//
// Pull and read files:
//
//	archive, err := c.Pull(ctx, "ghcr.io/myorg/app:v1")
//	if err != nil {
//	    return err
//	}
//	content, err := archive.ReadAll(ctx, "main.js")
//
// Extract a directory to disk. Adjacent files are read with one range
// stream:
//
//	err = archive.ExtractDir(ctx, "./out", "assets", asar.ExtractWithOverwrite(true))
//
// # Caching
//
// WithCacheDir enables the manifest, content and block caches:
//
//	c, err := asar.NewClient(
//	    asar.WithDockerConfig(),
//	    asar.WithCacheDir("/var/cache/asar"),
//	)
package asar
