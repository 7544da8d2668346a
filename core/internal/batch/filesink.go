package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File modes applied when WithPreserveMode is enabled.
const (
	fileMode       fs.FileMode = 0o644
	executableMode fs.FileMode = 0o755
)

// FileSink writes entries to the filesystem.
//
// By default, files are written to a temporary file in the same directory
// and renamed to the final path on Commit. Partially written files are
// never visible at the final path.
type FileSink struct {
	destDir      string
	overwrite    bool
	preserveMode bool
	directWrite  bool
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithPreserveMode applies 0755 to executable entries and 0644 to the rest.
// By default, files keep the mode they were created with.
func WithPreserveMode(preserve bool) FileSinkOption {
	return func(s *FileSink) {
		s.preserveMode = preserve
	}
}

// WithDirectWrites disables temp files and writes directly to the final path.
func WithDirectWrites(enabled bool) FileSinkOption {
	return func(s *FileSink) {
		s.directWrite = enabled
	}
}

// NewFileSink creates a FileSink that writes to destDir.
//
// Parent directories are created automatically as needed. All writes go
// through an os.Root so entries cannot escape destDir.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir: destDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldProcess returns false if the file already exists and overwrite is disabled.
func (s *FileSink) ShouldProcess(entry *Entry) bool {
	if s.overwrite {
		return true
	}
	if !fs.ValidPath(entry.Path) {
		return false
	}
	_, err := os.Lstat(filepath.Join(s.destDir, filepath.FromSlash(entry.Path)))
	return errors.Is(err, fs.ErrNotExist)
}

// MkdirAll creates the directory at the slash-separated path below destDir.
func (s *FileSink) MkdirAll(path string) error {
	if !fs.ValidPath(path) {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrInvalid}
	}
	if err := os.MkdirAll(s.destDir, 0o750); err != nil {
		return err
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close()
	return root.MkdirAll(filepath.FromSlash(path), 0o750)
}

// Writer returns a Committer for the entry.
func (s *FileSink) Writer(entry *Entry) (Committer, error) {
	if !fs.ValidPath(entry.Path) || entry.Path == "." {
		return nil, &fs.PathError{Op: "extract", Path: entry.Path, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(entry.Path)
	destPath := filepath.Join(s.destDir, destRel)

	if err := os.MkdirAll(s.destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create destination %s: %w", s.destDir, err)
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	if err := root.MkdirAll(filepath.Dir(destRel), 0o750); err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(destPath), err)
	}

	c := &fileCommitter{
		entry:    entry,
		destPath: destPath,
		destRel:  destRel,
		root:     root,
		sink:     s,
	}

	if s.directWrite {
		f, err := root.OpenFile(destRel, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			_ = root.Close() //nolint:errcheck // best-effort cleanup
			return nil, fmt.Errorf("create file %s: %w", destPath, err)
		}
		c.file = f
		c.fileRel = destRel
		return c, nil
	}

	// Temp file in the same directory so the final rename is atomic.
	f, tempRel, err := createTempFile(root, filepath.Dir(destRel), ".asar-")
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	c.file = f
	c.fileRel = tempRel
	return c, nil
}

// fileCommitter writes to fileRel and, unless it already is the final
// path, renames it to destRel on Commit.
type fileCommitter struct {
	entry    *Entry
	destPath string
	destRel  string
	file     *os.File
	fileRel  string
	root     *os.Root
	sink     *FileSink
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Commit closes the file, applies the mode and moves it into place.
func (c *fileCommitter) Commit() error {
	if err := c.file.Close(); err != nil {
		return c.fail(fmt.Errorf("close file: %w", err))
	}

	if c.sink.preserveMode {
		mode := fileMode
		if c.entry.Executable {
			mode = executableMode
		}
		if err := c.root.Chmod(c.fileRel, mode); err != nil {
			return c.fail(fmt.Errorf("chmod: %w", err))
		}
	}

	if c.fileRel != c.destRel {
		if err := c.root.Rename(c.fileRel, c.destRel); err != nil {
			return c.fail(fmt.Errorf("rename to %s: %w", c.destPath, err))
		}
	}

	_ = c.root.Close() //nolint:errcheck // best-effort cleanup
	return nil
}

// Discard closes and removes the staged file.
func (c *fileCommitter) Discard() error {
	_ = c.file.Close() //nolint:errcheck // we're cleaning up
	if err := c.root.Remove(c.fileRel); err != nil {
		_ = c.root.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	return c.root.Close()
}

// fail removes the staged file and returns err.
func (c *fileCommitter) fail(err error) error {
	_ = c.root.Remove(c.fileRel) //nolint:errcheck // best-effort cleanup
	_ = c.root.Close()           //nolint:errcheck // best-effort cleanup
	return err
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
