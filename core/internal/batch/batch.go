// Package batch writes many archive files to a sink, reading runs of
// adjacent files through a single stream.
package batch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/asar/core/internal/asartype"
)

// StreamFunc opens a stream over the archive window [off, off+length).
type StreamFunc func(ctx context.Context, off, length int64) (io.ReadCloser, error)

// Processor reads entries from an archive and writes them to a sink.
//
// Files in an archive are laid out back to back, so a run of adjacent
// entries costs one stream regardless of how many files it holds.
type Processor struct {
	open    StreamFunc
	workers int // 0 = auto, <0 = serial, >0 = fixed count
	logger  *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of groups processed concurrently.
// Values <= 0 (the default) process groups one at a time, so at most one
// range stream is open.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithProcessorLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a processor that reads archive windows through open.
func NewProcessor(open StreamFunc, opts ...ProcessorOption) *Processor {
	p := &Processor{open: open}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process reads entries and writes them to the sink.
//
// Entries are filtered through sink.ShouldProcess, sorted by offset and
// grouped into contiguous runs. Entries within a group are written in
// archive order; separate groups may be processed concurrently.
//
// Processing stops on the first error encountered.
func (p *Processor) Process(ctx context.Context, entries []*Entry, sink Sink) (ProcessStats, error) {
	var stats ProcessStats

	toProcess := make([]*Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Offset < 0 || entry.Size < 0 {
			return stats, fmt.Errorf("batch: %s: invalid range offset %d size %d", entry.Path, entry.Offset, entry.Size)
		}
		if entry.Offset > math.MaxInt64-entry.Size {
			return stats, fmt.Errorf("batch: %s: %w", entry.Path, asartype.ErrSizeOverflow)
		}
		if !sink.ShouldProcess(entry) {
			stats.Skipped++
			continue
		}
		toProcess = append(toProcess, entry)
	}
	if len(toProcess) == 0 {
		return stats, nil
	}

	// Empty files sort before a file sharing their offset so runs stay adjacent.
	slices.SortStableFunc(toProcess, func(a, b *Entry) int {
		if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
			return c
		}
		return cmp.Compare(a.Size, b.Size)
	})

	groups := groupAdjacentEntries(toProcess)
	workers := p.workerCount(len(groups))
	p.log().Debug("batch processing", "entries", len(toProcess), "groups", len(groups), "workers", workers)

	if workers < 2 {
		for _, group := range groups {
			gs, err := p.processGroup(ctx, group, sink)
			stats.add(gs)
			if err != nil {
				return stats, err
			}
		}
		return stats, nil
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for _, group := range groups {
		eg.Go(func() error {
			gs, err := p.processGroup(egCtx, group, sink)
			mu.Lock()
			stats.add(gs)
			mu.Unlock()
			return err
		})
	}
	err := eg.Wait()
	return stats, err
}

// processGroup streams a contiguous run and writes each entry in turn.
func (p *Processor) processGroup(ctx context.Context, group rangeGroup, sink Sink) (ProcessStats, error) {
	var stats ProcessStats
	rc, err := p.open(ctx, group.start, group.end-group.start)
	if err != nil {
		return stats, fmt.Errorf("batch: open [%d, %d): %w", group.start, group.end, err)
	}
	defer rc.Close()

	for _, entry := range group.entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := p.processEntry(entry, rc, sink); err != nil {
			return stats, err
		}
		stats.Processed++
		stats.TotalBytes += uint64(entry.Size) //nolint:gosec // validated non-negative
	}
	return stats, nil
}

// processEntry copies one entry from r into a sink writer, verifying its
// digest when present.
func (p *Processor) processEntry(entry *Entry, r io.Reader, sink Sink) error {
	w, err := sink.Writer(entry)
	if err != nil {
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}

	if err := copyVerified(w, r, entry); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("batch: %s: %w", entry.Path, err)
	}

	if err := w.Commit(); err != nil {
		return fmt.Errorf("batch: %s: commit: %w", entry.Path, err)
	}
	p.log().Debug("extracted file", "path", entry.Path, "size", entry.Size)
	return nil
}

// copyVerified copies exactly entry.Size bytes from r to w.
func copyVerified(w io.Writer, r io.Reader, entry *Entry) error {
	var verifier digest.Verifier
	if entry.Digest != "" {
		if err := entry.Digest.Validate(); err != nil {
			return fmt.Errorf("%w: %v", asartype.ErrIntegrity, err)
		}
		verifier = entry.Digest.Verifier()
		w = io.MultiWriter(w, verifier)
	}

	n, err := io.CopyN(w, r, entry.Size)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: got %d of %d bytes", asartype.ErrIncompleteRead, n, entry.Size)
		}
		return err
	}
	if verifier != nil && !verifier.Verified() {
		return fmt.Errorf("%w: content does not match %s", asartype.ErrIntegrity, entry.Digest)
	}
	return nil
}

// workerCount determines the number of groups to process concurrently.
func (p *Processor) workerCount(groups int) int {
	if groups < 2 || p.workers <= 0 {
		return 1
	}
	return min(p.workers, groups)
}
