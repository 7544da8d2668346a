package asar

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/meigma/asar/core/internal/batch"
	"github.com/meigma/asar/core/internal/index"
	"github.com/meigma/asar/core/internal/rangeio"
)

// Extract writes the files at paths below destDir, keeping their archive
// paths. Paths must name packed files: directories fail with ErrNotFile and
// unpacked files with ErrUnpacked. Nothing is written if any path fails to
// resolve.
//
// Files are written atomically using temp files and renames unless
// ExtractWithDirectWrites is set. Existing files are skipped unless
// ExtractWithOverwrite is set.
func (r *Reader) Extract(ctx context.Context, destDir string, paths []string, opts ...ExtractOption) error {
	cfg := newExtractConfig(opts)

	seen := make(map[string]struct{}, len(paths))
	entries := make([]*batch.Entry, 0, len(paths))
	for _, path := range paths {
		node, canonical, err := r.lookupNode(path)
		if err != nil {
			return err
		}
		if _, ok := seen[canonical]; ok {
			continue
		}
		seen[canonical] = struct{}{}
		entry, err := r.batchEntry(canonical, node)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	return r.extract(ctx, destDir, entries, &cfg)
}

// ExtractDir writes every file below the directory prefix to destDir,
// recreating directories (including empty ones) on the way. Destination
// paths are archive paths, so extracting "lib" produces destDir/lib/...
// A prefix of "" or "." extracts the whole archive.
//
// Unpacked files have no content in the archive and are skipped.
func (r *Reader) ExtractDir(ctx context.Context, destDir, prefix string, opts ...ExtractOption) error {
	cfg := newExtractConfig(opts)

	node, canonical, err := r.lookupNode(prefix)
	if err != nil {
		return err
	}
	if !node.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, prefix)
	}
	base, err := index.Split(canonical)
	if err != nil {
		return err
	}

	sink := cfg.sink(destDir)
	root := canonical
	if root == "" {
		root = "."
	}
	if err := sink.MkdirAll(root); err != nil {
		return err
	}

	var entries []*batch.Entry
	err = node.Walk(func(segments []string, child *index.Node) error {
		path := index.Join(append(slices.Clip(base), segments...))
		switch {
		case child.IsDir():
			return sink.MkdirAll(path)
		case child.Unpacked:
			r.log().Debug("skipping unpacked file", "path", path)
			return nil
		}
		entry, err := r.batchEntry(path, child)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return err
	}
	return r.extractTo(ctx, destDir, entries, sink, &cfg)
}

// batchEntry describes the file node at path for the batch processor.
func (r *Reader) batchEntry(path string, node *index.Node) (*batch.Entry, error) {
	off, length, err := r.fileRange(path, node)
	if err != nil {
		return nil, err
	}
	entry := &batch.Entry{
		Path:       path,
		Offset:     off,
		Size:       length,
		Executable: node.Executable,
	}
	if r.verifyIntegrity {
		if d, ok := integrityDigest(node.Integrity); ok {
			entry.Digest = d
		}
	}
	return entry, nil
}

func (r *Reader) extract(ctx context.Context, destDir string, entries []*batch.Entry, cfg *extractConfig) error {
	return r.extractTo(ctx, destDir, entries, cfg.sink(destDir), cfg)
}

func (r *Reader) extractTo(ctx context.Context, destDir string, entries []*batch.Entry, sink batch.Sink, cfg *extractConfig) error {
	if len(entries) == 0 {
		return nil
	}

	open := func(ctx context.Context, off, length int64) (io.ReadCloser, error) {
		return rangeio.Open(ctx, r.src, off, length, r.chunkSize)
	}
	procOpts := []batch.ProcessorOption{batch.WithProcessorLogger(r.logger)}
	if cfg.workers != 0 {
		procOpts = append(procOpts, batch.WithWorkers(cfg.workers))
	}

	stats, err := batch.NewProcessor(open, procOpts...).Process(ctx, entries, sink)
	if err != nil {
		return err
	}
	r.log().Info("extracted files",
		"dest", destDir,
		"files", stats.Processed,
		"skipped", stats.Skipped,
		"bytes", stats.TotalBytes)
	return nil
}
