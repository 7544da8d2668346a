package asar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Save finalizes the archive and writes it to path.
//
// Uses atomic writes (temp file + rename) to prevent partial writes on failure.
// Parent directories are created as needed.
func (w *Writer) Save(path string) error {
	if w.finalized {
		return ErrAlreadyFinalized
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".asar-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := w.WriteTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	w.log().Info("archive saved", "path", path)
	return nil
}

// File is a Reader over an archive on local disk.
// Close must be called to release the file handle.
type File struct {
	*Reader
	file *os.File
}

// Close closes the underlying archive file.
func (f *File) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// OpenFile opens the archive at path and loads its header.
//
// Content is read with positional reads, and streams are served natively
// without chunking. The returned File must be closed.
func OpenFile(path string, opts ...ReaderOption) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	src := NewReaderAtSource(f, info.Size(), fileSourceID(path, info))
	r := NewReader(src, opts...)
	if err := r.LoadHeader(context.Background()); err != nil {
		f.Close()
		return nil, err
	}
	return &File{Reader: r, file: f}, nil
}
