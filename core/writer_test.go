package asar

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/core/internal/header"
)

// testFile is one member of a test archive, added in order.
type testFile struct {
	path    string
	content string
}

// buildArchive packs files in order and returns the archive bytes.
func buildArchive(t *testing.T, files []testFile, opts ...WriterOption) []byte {
	t.Helper()
	w := NewWriter(opts...)
	for _, f := range files {
		require.NoError(t, w.AddBytes(f.path, []byte(f.content)))
	}
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// writeAll finalizes w into memory.
func writeAll(t *testing.T, w *Writer) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

// loadArchive returns a header-loaded Reader over data.
func loadArchive(t *testing.T, data []byte, opts ...ReaderOption) *Reader {
	t.Helper()
	r := NewReader(BytesSource(data), opts...)
	require.NoError(t, r.LoadHeader(context.Background()))
	return r
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	require.NoError(t, w.Add("a.txt", strings.NewReader("hello"), 5))
	require.NoError(t, w.Add("dir/b.txt", strings.NewReader("world!"), 6))

	rc, err := w.Finalize()
	require.NoError(t, err)
	raw, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	r := loadArchive(t, raw)

	dir, err := r.Lookup("dir")
	require.NoError(t, err)
	assert.True(t, dir.IsDir())

	b, err := r.Lookup("dir/b.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(6), b.Size)
	assert.Equal(t, uint64(5), b.Offset)

	got, err := r.ReadAll(context.Background(), "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
	got, err = r.ReadAll(context.Background(), "dir/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "world!", string(got))

	headerSize, err := r.HeaderSize()
	require.NoError(t, err)
	off, length, err := r.Range("dir/b.txt")
	require.NoError(t, err)
	assert.Equal(t, headerSize+5, off)
	assert.Equal(t, int64(6), length)
	assert.Equal(t, "world!", string(raw[off:off+length]))
	assert.Equal(t, int64(len(raw)), headerSize+11)
}

func TestWriterHeaderLayout(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, []testFile{{"a.txt", "hello"}})

	require.GreaterOrEqual(t, len(raw), header.PrefixSize)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(raw[0:4]))
	innerLen := binary.LittleEndian.Uint32(raw[4:8])
	assert.Equal(t, uint32(0), innerLen%4)
	textLen := binary.LittleEndian.Uint32(raw[12:16])
	assert.Equal(t, innerLen-4, binary.LittleEndian.Uint32(raw[8:12]))

	text := raw[16 : 16+textLen]
	assert.JSONEq(t, `{"files":{"a.txt":{"size":5,"offset":"0"}}}`, string(text))
	for _, pad := range raw[16+textLen : 8+innerLen] {
		assert.Zero(t, pad)
	}
	assert.Equal(t, "hello", string(raw[8+innerLen:]))
}

func TestWriterOffsetsFollowInsertionOrder(t *testing.T) {
	t.Parallel()

	files := []testFile{
		{"z.txt", "zz"},
		{"a/b.txt", "bbb"},
		{"a/a.txt", ""},
		{"m.txt", "mmmm"},
	}
	r := loadArchive(t, buildArchive(t, files))

	want := map[string]uint64{"z.txt": 0, "a/b.txt": 2, "a/a.txt": 5, "m.txt": 5}
	for path, off := range want {
		e, err := r.Lookup(path)
		require.NoError(t, err, path)
		assert.Equal(t, off, e.Offset, path)
	}
}

func TestWriterErrors(t *testing.T) {
	t.Parallel()

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		require.NoError(t, w.AddBytes("a.txt", []byte("1")))
		err := w.AddBytes("/a.txt", []byte("2"))
		require.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, uint64(1), w.ContentSize())
		assert.Equal(t, 1, w.Len())
	})

	t.Run("file as parent", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		require.NoError(t, w.AddBytes("a", []byte("1")))
		require.ErrorIs(t, w.AddBytes("a/b", []byte("2")), ErrAlreadyExists)
		require.ErrorIs(t, w.MakeDirectory("a/c"), ErrAlreadyExists)
	})

	t.Run("directory taken", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		require.NoError(t, w.MakeDirectory("dir"))
		require.ErrorIs(t, w.AddBytes("dir", []byte("x")), ErrAlreadyExists)
	})

	t.Run("invalid paths", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		for _, name := range []string{"", "/", ".", "a/../b", "a/./b", "a\x00b"} {
			assert.ErrorIs(t, w.AddBytes(name, nil), ErrInvalidPath, "%q", name)
		}
		assert.Zero(t, w.Len())
	})

	t.Run("negative size", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		require.Error(t, w.Add("a", strings.NewReader(""), -1))
	})

	t.Run("finalized", func(t *testing.T) {
		t.Parallel()
		w := NewWriter(WithComputeIntegrity(0))
		require.NoError(t, w.AddBytes("a", []byte("1")))
		rc, err := w.Finalize()
		require.NoError(t, err)
		defer rc.Close()

		require.ErrorIs(t, w.AddBytes("b", nil), ErrAlreadyFinalized)
		require.ErrorIs(t, w.AddFile("b", filepath.Join(t.TempDir(), "missing")), ErrAlreadyFinalized)
		require.ErrorIs(t, w.AddFile("b", t.TempDir()), ErrAlreadyFinalized)
		require.ErrorIs(t, w.Add("b", strings.NewReader(""), 0), ErrAlreadyFinalized)
		require.ErrorIs(t, w.AddUnpacked("b", 1), ErrAlreadyFinalized)
		require.ErrorIs(t, w.MakeDirectory("d"), ErrAlreadyFinalized)
		_, err = w.Finalize()
		require.ErrorIs(t, err, ErrAlreadyFinalized)
		_, err = w.WriteTo(io.Discard)
		require.ErrorIs(t, err, ErrAlreadyFinalized)
	})
}

func TestWriterMakeDirectory(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	require.NoError(t, w.MakeDirectory("a/b/c"))
	require.NoError(t, w.MakeDirectory("a/b"))
	require.NoError(t, w.AddBytes("a/b/file", []byte("x")))

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	r := loadArchive(t, buf.Bytes())

	names, err := r.List("a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "file"}, names)

	names, err = r.List("a/b/c")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWriterEmptyArchive(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, nil)
	r := loadArchive(t, raw)

	size, err := r.HeaderSize()
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), size)

	names, err := r.List("")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWriterStreamsLazily(t *testing.T) {
	t.Parallel()

	opened := false
	w := NewWriter()
	require.NoError(t, w.AddBytes("first", []byte("1")))
	require.NoError(t, w.Add("second", &lazyReader{onRead: func() { opened = true }, r: strings.NewReader("22")}, 2))

	rc, err := w.Finalize()
	require.NoError(t, err)
	assert.False(t, opened)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.True(t, opened)
	assert.True(t, bytes.HasSuffix(got, []byte("122")))
}

type lazyReader struct {
	onRead func()
	r      io.Reader
}

func (l *lazyReader) Read(p []byte) (int, error) {
	l.onRead()
	return l.r.Read(p)
}

func TestWriterShortSource(t *testing.T) {
	t.Parallel()

	t.Run("error", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		require.NoError(t, w.Add("a", strings.NewReader("abc"), 5))
		_, err := w.WriteTo(io.Discard)
		require.ErrorIs(t, err, ErrShortSource)
	})

	t.Run("zero fill", func(t *testing.T) {
		t.Parallel()
		w := NewWriter(WithShortSourcePolicy(ShortSourceZeroFill))
		require.NoError(t, w.Add("a", strings.NewReader("abc"), 5))
		require.NoError(t, w.Add("b", strings.NewReader("xy"), 2))
		var buf bytes.Buffer
		_, err := w.WriteTo(&buf)
		require.NoError(t, err)

		r := loadArchive(t, buf.Bytes())
		got, err := r.ReadAll(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc\x00\x00"), got)
		got, err = r.ReadAll(context.Background(), "b")
		require.NoError(t, err)
		assert.Equal(t, "xy", string(got))
	})

	t.Run("long source truncated", func(t *testing.T) {
		t.Parallel()
		w := NewWriter()
		require.NoError(t, w.Add("a", strings.NewReader("abcdef"), 3))
		require.NoError(t, w.Add("b", strings.NewReader("xy"), 2))
		var buf bytes.Buffer
		_, err := w.WriteTo(&buf)
		require.NoError(t, err)

		r := loadArchive(t, buf.Bytes())
		got, err := r.ReadAll(context.Background(), "b")
		require.NoError(t, err)
		assert.Equal(t, "xy", string(got))
	})
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestWriterClosesSources(t *testing.T) {
	t.Parallel()

	t.Run("closed early", func(t *testing.T) {
		t.Parallel()
		first := &closeTracker{Reader: strings.NewReader("aa")}
		second := &closeTracker{Reader: strings.NewReader("bb")}
		w := NewWriter()
		require.NoError(t, w.Add("a", first, 2))
		require.NoError(t, w.Add("b", second, 2))

		rc, err := w.Finalize()
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.True(t, first.closed)
		assert.True(t, second.closed)
	})

	t.Run("consumed", func(t *testing.T) {
		t.Parallel()
		src := &closeTracker{Reader: strings.NewReader("aa")}
		w := NewWriter()
		require.NoError(t, w.Add("a", src, 2))

		rc, err := w.Finalize()
		require.NoError(t, err)
		_, err = io.Copy(io.Discard, rc)
		require.NoError(t, err)
		assert.True(t, src.closed)
		require.NoError(t, rc.Close())
	})
}

func TestWriterUnpacked(t *testing.T) {
	t.Parallel()

	w := NewWriter()
	require.NoError(t, w.AddBytes("a.txt", []byte("aaa")))
	require.NoError(t, w.AddUnpacked("native.node", 1024, WithExecutable(true)))
	require.NoError(t, w.AddBytes("b.txt", []byte("bb")))
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, uint64(5), w.ContentSize())

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	r := loadArchive(t, buf.Bytes())

	e, err := r.Lookup("native.node")
	require.NoError(t, err)
	assert.True(t, e.Unpacked)
	assert.True(t, e.Executable)
	assert.Equal(t, uint64(1024), e.Size)

	_, err = r.ReadAll(context.Background(), "native.node")
	require.ErrorIs(t, err, ErrUnpacked)
	_, err = r.OpenStream(context.Background(), "native.node")
	require.ErrorIs(t, err, ErrUnpacked)

	b, err := r.Lookup("b.txt")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), b.Offset)
}

func TestWriterAddFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.txt")
	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(plain, []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0o755))

	w := NewWriter(WithComputeIntegrity(4))
	require.NoError(t, w.AddFile("plain.txt", plain))
	require.NoError(t, w.AddFile("bin/run.sh", script))
	require.NoError(t, w.AddFile("bin/forced.sh", script, WithExecutable(false)))
	require.Error(t, w.AddFile("missing", filepath.Join(dir, "missing")))
	require.Error(t, w.AddFile("dir", dir))

	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	r := loadArchive(t, buf.Bytes(), WithVerifyIntegrity(true))

	e, err := r.Lookup("bin/run.sh")
	require.NoError(t, err)
	assert.True(t, e.Executable)
	require.NotNil(t, e.Integrity)
	assert.Equal(t, 4, e.Integrity.BlockSize)
	assert.Len(t, e.Integrity.Blocks, 3)

	e, err = r.Lookup("bin/forced.sh")
	require.NoError(t, err)
	assert.False(t, e.Executable)

	got, err := r.ReadAll(context.Background(), "plain.txt")
	require.NoError(t, err)
	assert.Equal(t, "plain", string(got))
}

func TestWriterAddFileOpenFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := NewWriter()
	require.NoError(t, w.AddFile("gone.txt", path))
	require.NoError(t, os.Remove(path))

	_, err := w.WriteTo(io.Discard)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriterAddFileSymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "link.txt")
	require.NoError(t, os.WriteFile(target, []byte("target"), 0o644))
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	w := NewWriter()
	require.ErrorIs(t, w.AddFile("link.txt", link), ErrSymlink)
	assert.Equal(t, 0, w.Len())

	// A file replaced by a link after AddFile is refused when spliced.
	swapped := filepath.Join(dir, "swapped.txt")
	require.NoError(t, os.WriteFile(swapped, []byte("target"), 0o644))
	require.NoError(t, w.AddFile("swapped.txt", swapped))
	require.NoError(t, os.Remove(swapped))
	require.NoError(t, os.Symlink(target, swapped))

	_, err := w.WriteTo(io.Discard)
	require.ErrorIs(t, err, ErrSymlink)
}

func TestWriterProgress(t *testing.T) {
	t.Parallel()

	var events []ProgressEvent
	w := NewWriter(WithProgress(func(e ProgressEvent) { events = append(events, e) }))
	require.NoError(t, w.AddBytes("a", []byte("aaa")))
	require.NoError(t, w.AddBytes("b/c", []byte("cc")))

	var buf bytes.Buffer
	n, err := w.WriteTo(&buf)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Path)
	assert.Equal(t, "b/c", events[1].Path)
	for i, e := range events {
		assert.Equal(t, StageSplicing, e.Stage)
		assert.Equal(t, i+1, e.FilesDone)
		assert.Equal(t, 2, e.FilesTotal)
		assert.Equal(t, uint64(n), e.BytesTotal) //nolint:gosec // test sizes are small
	}
	assert.Equal(t, events[1].BytesTotal, events[1].BytesDone)
	assert.Equal(t, events[1].BytesDone-2, events[0].BytesDone)
}

func TestWriterSourceReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	w := NewWriter()
	require.NoError(t, w.Add("a", io.MultiReader(strings.NewReader("a"), &errReader{err: boom}), 4))

	_, err := w.WriteTo(io.Discard)
	require.ErrorIs(t, err, boom)
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }
