package asar

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/meigma/asar/core/internal/header"
	"github.com/meigma/asar/core/internal/index"
	"github.com/meigma/asar/core/internal/platform"
	"github.com/meigma/asar/core/internal/splice"
)

// Writer assembles an archive from members added one at a time.
//
// Members are laid out in the order they are added; each file's offset is
// the total size of the files added before it. Finalize encodes the header
// and returns the archive as one stream. After Finalize every mutating call
// fails with ErrAlreadyFinalized.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	root      *index.Node
	entries   []splice.Entry
	paths     []string // archive path of each entry, for progress
	offset    uint64   // next file offset within the content region
	finalized bool

	computeIntegrity   bool
	integrityBlockSize int
	shortSource        ShortSourcePolicy
	progress           ProgressFunc
	logger             *slog.Logger
}

// NewWriter returns an empty Writer.
func NewWriter(opts ...WriterOption) *Writer {
	w := &Writer{root: index.NewDirectory()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// log returns the logger, falling back to a discard logger if nil.
func (w *Writer) log() *slog.Logger {
	if w.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.logger
}

// Add adds a file at name whose content is size bytes read from r.
//
// r is not read until the finalized stream reaches it. If r is an
// io.Closer it is closed once consumed, or when the stream is closed before
// reaching it. Missing parent directories are created. Add fails with
// ErrAlreadyExists if name is taken or a parent is a file; the archive is
// left unchanged on any failure.
func (w *Writer) Add(name string, r io.Reader, size int64, opts ...FileOption) error {
	return w.addEntry(name, size, splice.FromReader(r, size), opts)
}

// AddBytes adds a file at name with the given content.
func (w *Writer) AddBytes(name string, data []byte, opts ...FileOption) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	cfg := w.fileConfig(opts)
	if w.computeIntegrity && cfg.integrity == nil {
		integ, err := ComputeIntegrity(bytes.NewReader(data), w.integrityBlockSize)
		if err != nil {
			return err
		}
		opts = append(opts, WithFileIntegrity(integ))
	}
	return w.addEntry(name, int64(len(data)), splice.FromBytes(data), opts)
}

// AddFile adds the local file at fsPath as name.
//
// The file is opened when the finalized stream reaches it; its size is
// taken now. Files with any execute bit set are marked executable unless
// WithExecutable says otherwise. Symbolic links fail with ErrSymlink.
func (w *Writer) AddFile(name, fsPath string, opts ...FileOption) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	info, err := os.Lstat(fsPath)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("add %s: %s: %w", name, fsPath, ErrSymlink)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("add %s: %s is not a regular file", name, fsPath)
	}
	cfg := w.fileConfig(opts)
	if !cfg.executableSet && info.Mode().Perm()&0o111 != 0 {
		opts = append(opts, WithExecutable(true))
	}
	if w.computeIntegrity && cfg.integrity == nil {
		integ, err := integrityOfFile(fsPath, w.integrityBlockSize)
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		opts = append(opts, WithFileIntegrity(integ))
	}
	open := func() (io.ReadCloser, error) {
		f, err := openNoFollow(fsPath)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return w.addEntry(name, info.Size(), splice.FromOpener(info.Size(), open), opts)
}

// AddUnpacked records a file of the given size whose content is stored
// outside the archive. No bytes are spliced for it.
func (w *Writer) AddUnpacked(name string, size int64, opts ...FileOption) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	if size < 0 {
		return fmt.Errorf("add %s: negative size %d", name, size)
	}
	node := &index.Node{Kind: KindFile, Size: uint64(size), Unpacked: true}
	w.fileConfig(opts).apply(node)
	segments, err := splitMember(name)
	if err != nil {
		return err
	}
	if err := w.root.Insert(segments, node); err != nil {
		return err
	}
	w.log().Debug("added unpacked member", "path", index.Join(segments), "size", size)
	return nil
}

// MakeDirectory ensures a directory exists at name, creating parents.
// It is a no-op if the directory exists and fails with ErrAlreadyExists if
// any component is a file.
func (w *Writer) MakeDirectory(name string) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	segments, err := index.Split(name)
	if err != nil {
		return err
	}
	_, err = w.root.MkdirAll(segments)
	return err
}

func (w *Writer) addEntry(name string, size int64, entry splice.Entry, opts []FileOption) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	if size < 0 {
		return fmt.Errorf("add %s: negative size %d", name, size)
	}
	usize := uint64(size)
	if usize > math.MaxInt64-w.offset {
		return fmt.Errorf("add %s: %w", name, ErrSizeOverflow)
	}
	segments, err := splitMember(name)
	if err != nil {
		return err
	}
	node := index.NewFile(w.offset, usize)
	w.fileConfig(opts).apply(node)
	if err := w.root.Insert(segments, node); err != nil {
		return err
	}
	w.entries = append(w.entries, entry)
	w.paths = append(w.paths, index.Join(segments))
	w.offset += usize
	w.log().Debug("added member", "path", index.Join(segments), "offset", node.Offset, "size", size)
	return nil
}

func (w *Writer) fileConfig(opts []FileOption) fileConfig {
	var cfg fileConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c fileConfig) apply(n *index.Node) {
	n.Executable = c.executable
	n.Integrity = c.integrity
}

func splitMember(name string) ([]string, error) {
	segments, err := index.Split(name)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q names the archive root", ErrInvalidPath, name)
	}
	return segments, nil
}

// Len returns the number of members added, including unpacked files.
func (w *Writer) Len() int {
	n := 0
	_ = w.root.Walk(func(_ []string, node *index.Node) error { //nolint:errcheck // callback never fails
		if node.Kind == KindFile {
			n++
		}
		return nil
	})
	return n
}

// ContentSize returns the total size of the packed file content added so far.
func (w *Writer) ContentSize() uint64 {
	return w.offset
}

// Finalize encodes the header and returns the complete archive stream.
//
// The stream yields the header followed by every packed member in the
// order added. Closing it early releases all member sources not yet
// consumed. Finalize can be called once; the Writer is inert afterwards.
func (w *Writer) Finalize() (io.ReadCloser, error) {
	if w.finalized {
		return nil, ErrAlreadyFinalized
	}
	hdr, err := header.Encode(w.root)
	if err != nil {
		return nil, err
	}
	w.finalized = true

	entries := make([]splice.Entry, 0, len(w.entries)+1)
	entries = append(entries, splice.FromBytes(hdr))
	entries = append(entries, w.entries...)
	paths := w.paths
	w.entries, w.paths = nil, nil

	w.log().Info("finalizing archive",
		"files", len(paths),
		"header_size", len(hdr),
		"content_size", w.offset)

	opts := []splice.Option{splice.WithShortSourcePolicy(w.shortSource)}
	if w.progress != nil {
		opts = append(opts, splice.WithEntryDone(w.entryDone(paths, uint64(len(hdr)))))
	}
	return splice.New(entries, opts...), nil
}

// entryDone reports progress as each member finishes. Entry 0 is the header.
func (w *Writer) entryDone(paths []string, headerSize uint64) func(int, int64) {
	total := headerSize + w.offset
	done := uint64(0)
	return func(i int, size int64) {
		done += uint64(size) //nolint:gosec // sizes are validated non-negative
		if i == 0 {
			return
		}
		w.progress(ProgressEvent{
			Stage:      StageSplicing,
			Path:       paths[i-1],
			BytesDone:  done,
			BytesTotal: total,
			FilesDone:  i,
			FilesTotal: len(paths),
		})
	}
}

// WriteTo finalizes the archive and copies it to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	rc, err := w.Finalize()
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, rc)
	closeErr := rc.Close()
	if err != nil {
		return n, err
	}
	return n, closeErr
}

func integrityOfFile(path string, blockSize int) (*Integrity, error) {
	f, err := openNoFollow(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ComputeIntegrity(f, blockSize)
}

// openNoFollow opens path for reading, refusing a symbolic link in its
// final component so a file swapped for a link after AddFile is not followed.
func openNoFollow(path string) (*os.File, error) {
	root, err := os.OpenRoot(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	defer root.Close()
	return platform.OpenFileNoFollow(root, filepath.Base(path))
}

// Interface compliance.
var _ io.WriterTo = (*Writer)(nil)
