package asar

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/meigma/asar/core/internal/index"
)

// Interface compliance.
var (
	_ fs.FS         = (*Reader)(nil)
	_ fs.StatFS     = (*Reader)(nil)
	_ fs.ReadFileFS = (*Reader)(nil)
	_ fs.ReadDirFS  = (*Reader)(nil)
)

// fsNode resolves an fs.FS name. Errors are *fs.PathError; lookup misses
// also match fs.ErrNotExist.
func (r *Reader) fsNode(op, name string) (*index.Node, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	node, _, err := r.lookupNode(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = errors.Join(fs.ErrNotExist, err)
		}
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	return node, nil
}

// Open implements fs.FS.
//
// Files are streamed lazily: no bytes are fetched until the first Read.
// Directories implement fs.ReadDirFile. Unpacked files cannot be opened.
// The header must already be loaded.
func (r *Reader) Open(name string) (fs.File, error) {
	node, err := r.fsNode("open", name)
	if err != nil {
		return nil, err
	}
	if node.IsDir() {
		return &openDir{node: node, name: name}, nil
	}
	if node.Unpacked {
		return nil, &fs.PathError{Op: "open", Path: name, Err: ErrUnpacked}
	}
	return &openFile{r: r, node: node, name: name}, nil
}

// Stat implements fs.StatFS.
func (r *Reader) Stat(name string) (fs.FileInfo, error) {
	node, err := r.fsNode("stat", name)
	if err != nil {
		return nil, err
	}
	return newFileInfo(name, node), nil
}

// ReadFile implements fs.ReadFileFS.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	if _, err := r.fsNode("readfile", name); err != nil {
		return nil, err
	}
	data, err := r.ReadAll(context.Background(), name)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return data, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (r *Reader) ReadDir(name string) ([]fs.DirEntry, error) {
	node, err := r.fsNode("readdir", name)
	if err != nil {
		return nil, err
	}
	if !node.IsDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: ErrNotDirectory}
	}
	return dirEntries(node), nil
}

func dirEntries(node *index.Node) []fs.DirEntry {
	names := node.Names()
	entries := make([]fs.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fs.FileInfoToDirEntry(newFileInfo(name, node.Children[name])))
	}
	return entries
}

// openFile is a lazily opened archive file.
type openFile struct {
	r      *Reader
	node   *index.Node
	name   string
	rc     io.ReadCloser
	closed bool
}

func (f *openFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: fs.ErrClosed}
	}
	if f.rc == nil {
		rc, err := f.r.openStream(context.Background(), f.name, f.node)
		if err != nil {
			return 0, &fs.PathError{Op: "read", Path: f.name, Err: err}
		}
		f.rc = rc
	}
	return f.rc.Read(p)
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return newFileInfo(f.name, f.node), nil
}

func (f *openFile) Close() error {
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.name, Err: fs.ErrClosed}
	}
	f.closed = true
	if f.rc != nil {
		return f.rc.Close()
	}
	return nil
}

// openDir implements fs.ReadDirFile for archive directories.
type openDir struct {
	node    *index.Node
	name    string
	entries []fs.DirEntry
	pos     int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return newFileInfo(d.name, d.node), nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if d.entries == nil {
		d.entries = dirEntries(d.node)
	}
	rest := d.entries[d.pos:]
	if n <= 0 {
		d.pos = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.pos += n
	return rest[:n], nil
}

// fileInfo implements fs.FileInfo for archive entries.
type fileInfo struct {
	name string
	node *index.Node
}

func newFileInfo(name string, node *index.Node) *fileInfo {
	return &fileInfo{name: path.Base(name), node: node}
}

func (fi *fileInfo) Name() string { return fi.name }

func (fi *fileInfo) Size() int64 {
	if fi.node.IsDir() {
		return 0
	}
	return int64(fi.node.Size) //nolint:gosec // sizes beyond MaxInt64 are rejected on read
}

func (fi *fileInfo) Mode() fs.FileMode {
	switch {
	case fi.node.IsDir():
		return fs.ModeDir | 0o755
	case fi.node.Executable:
		return 0o755
	default:
		return 0o644
	}
}

func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return fi.node.IsDir() }
func (fi *fileInfo) Sys() any           { return nil }
