package index

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/core/internal/asartype"
)

func TestInsertAndLookup(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	require.NoError(t, root.Insert([]string{"a.txt"}, NewFile(0, 5)))
	require.NoError(t, root.Insert([]string{"dir", "sub", "b.txt"}, NewFile(5, 6)))

	dir, err := root.Lookup([]string{"dir"})
	require.NoError(t, err)
	assert.True(t, dir.IsDir())

	sub, err := root.Lookup([]string{"dir", "sub"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, sub.Names())

	b, err := root.Lookup([]string{"dir", "sub", "b.txt"})
	require.NoError(t, err)
	assert.Equal(t, KindFile, b.Kind)
	assert.Equal(t, uint64(5), b.Offset)
	assert.Equal(t, uint64(6), b.Size)

	self, err := root.Lookup(nil)
	require.NoError(t, err)
	assert.Same(t, root, self)
}

func TestLookup_NotFound(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	require.NoError(t, root.Insert([]string{"a.txt"}, NewFile(0, 5)))

	tests := []struct {
		name     string
		segments []string
	}{
		{"missing", []string{"nope"}},
		{"missing nested", []string{"x", "y"}},
		{"through file", []string{"a.txt", "child"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := root.Lookup(tt.segments)
			require.ErrorIs(t, err, asartype.ErrNotFound)
		})
	}
}

func TestInsert_Conflicts(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	require.NoError(t, root.Insert([]string{"a.txt"}, NewFile(0, 5)))
	_, err := root.MkdirAll([]string{"dir"})
	require.NoError(t, err)

	err = root.Insert([]string{"a.txt"}, NewFile(5, 1))
	require.ErrorIs(t, err, asartype.ErrAlreadyExists)

	err = root.Insert([]string{"dir"}, NewFile(5, 1))
	require.ErrorIs(t, err, asartype.ErrAlreadyExists)

	err = root.Insert([]string{"a.txt", "x", "y"}, NewFile(5, 1))
	require.ErrorIs(t, err, asartype.ErrAlreadyExists)

	err = root.Insert(nil, NewFile(5, 1))
	require.ErrorIs(t, err, asartype.ErrInvalidPath)

	// Failed inserts leave the tree untouched.
	assert.Equal(t, []string{"a.txt", "dir"}, root.Names())
	a, err := root.Lookup([]string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), a.Offset)
}

func TestMkdirAll(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	d1, err := root.MkdirAll([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.True(t, d1.IsDir())

	d2, err := root.MkdirAll([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Same(t, d1, d2, "MkdirAll should be idempotent")

	require.NoError(t, root.Insert([]string{"a", "file"}, NewFile(0, 1)))
	_, err = root.MkdirAll([]string{"a", "file", "deeper"})
	require.ErrorIs(t, err, asartype.ErrAlreadyExists)
	_, err = root.MkdirAll([]string{"a", "file"})
	require.ErrorIs(t, err, asartype.ErrAlreadyExists)

	a, err := root.Lookup([]string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "file"}, a.Names())
}

func TestWalk(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	require.NoError(t, root.Insert([]string{"z.txt"}, NewFile(0, 1)))
	require.NoError(t, root.Insert([]string{"b", "y.txt"}, NewFile(1, 2)))
	require.NoError(t, root.Insert([]string{"a.txt"}, NewFile(3, 3)))

	var visited []string
	err := root.Walk(func(segments []string, node *Node) error {
		visited = append(visited, Join(segments)+":"+node.Kind.String())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"a.txt:file",
		"b:directory",
		"b/y.txt:file",
		"z.txt:file",
	}, visited)
	assert.Equal(t, uint64(6), root.ContentSize())
}

func TestContentSize_SkipsUnpacked(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	require.NoError(t, root.Insert([]string{"a"}, NewFile(0, 4)))
	unpacked := NewFile(0, 100)
	unpacked.Unpacked = true
	require.NoError(t, root.Insert([]string{"b"}, unpacked))

	assert.Equal(t, uint64(4), root.ContentSize())
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{".", nil, false},
		{"/", nil, false},
		{"a", []string{"a"}, false},
		{"a/b/c.txt", []string{"a", "b", "c.txt"}, false},
		{"/a//b/", []string{"a", "b"}, false},
		{"a/../b", nil, true},
		{"./a", nil, true},
		{"a/\x00", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := Split(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, asartype.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNodeJSON(t *testing.T) {
	t.Parallel()

	root := NewDirectory()
	f := NewFile(1234567890123, 5)
	f.Executable = true
	require.NoError(t, root.Insert([]string{"bin", "tool"}, f))

	data, err := json.Marshal(root)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"files":{"bin":{"files":{"tool":{"size":5,"offset":"1234567890123","executable":true}}}}}`,
		string(data))

	var decoded Node
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, root, &decoded)
}

func TestNodeJSON_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"both files and size", `{"files":{},"size":1}`},
		{"missing size", `{"offset":"0"}`},
		{"negative size", `{"size":-1,"offset":"0"}`},
		{"fractional size", `{"size":1.5,"offset":"0"}`},
		{"bad offset", `{"size":1,"offset":"x"}`},
		{"null child", `{"files":{"a":null}}`},
		{"link", `{"link":"a/b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var n Node
			require.Error(t, json.Unmarshal([]byte(tt.in), &n))
		})
	}
}
