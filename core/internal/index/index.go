// Package index implements the archive's in-memory file tree.
//
// The tree is shared by the writer, which builds it as members are added,
// and the reader, which decodes it from the archive header. Every node
// carries an explicit Kind; directories own a child mapping and files carry
// an offset and size relative to the start of the content region.
package index

import (
	"fmt"
	"slices"
	"strings"

	"github.com/meigma/asar/core/internal/asartype"
)

// Separator is the reserved path separator. Names never contain it.
const Separator = "/"

// Kind discriminates directory and file nodes.
type Kind uint8

const (
	// KindDirectory marks a node with a child mapping.
	KindDirectory Kind = iota + 1

	// KindFile marks a node with an offset and size.
	KindFile
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Integrity records content hashes for a file.
//
// Hash covers the whole file; Blocks holds one hash per BlockSize bytes.
// Hashes are lowercase hex.
type Integrity struct {
	Algorithm string   `json:"algorithm"`
	Hash      string   `json:"hash"`
	BlockSize int      `json:"blockSize"`
	Blocks    []string `json:"blocks"`
}

// Node is a directory or file entry.
type Node struct {
	Kind Kind

	// Children is set for directories only.
	Children map[string]*Node

	// Offset is the file's position relative to the start of the content
	// region. Unused for unpacked files.
	Offset uint64

	// Size is the file's length in bytes.
	Size uint64

	// Executable marks files that should be restored with execute bits.
	Executable bool

	// Unpacked marks files whose content lives outside the archive.
	Unpacked bool

	// Integrity is optional content hash metadata.
	Integrity *Integrity
}

// NewDirectory returns an empty directory node.
func NewDirectory() *Node {
	return &Node{Kind: KindDirectory, Children: make(map[string]*Node)}
}

// NewFile returns a file node at offset with the given size.
func NewFile(offset, size uint64) *Node {
	return &Node{Kind: KindFile, Offset: offset, Size: size}
}

// IsDir reports whether n is a directory.
func (n *Node) IsDir() bool {
	return n.Kind == KindDirectory
}

// Child returns the direct child with the given name.
func (n *Node) Child(name string) (*Node, bool) {
	if !n.IsDir() {
		return nil, false
	}
	child, ok := n.Children[name]
	return child, ok
}

// Names returns the sorted names of a directory's children.
// It returns nil for files.
func (n *Node) Names() []string {
	if !n.IsDir() {
		return nil
	}
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup resolves segments relative to n.
//
// It returns ErrNotFound if any segment is absent or if the path passes
// through a file.
func (n *Node) Lookup(segments []string) (*Node, error) {
	cur := n
	for i, seg := range segments {
		next, ok := cur.Child(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %s", asartype.ErrNotFound, strings.Join(segments[:i+1], Separator))
		}
		cur = next
	}
	return cur, nil
}

// MkdirAll ensures a directory exists at segments, creating missing parents.
//
// It is idempotent for existing directories and returns ErrAlreadyExists if
// any component is a file. On failure the tree is left unchanged.
func (n *Node) MkdirAll(segments []string) (*Node, error) {
	parent, missing, err := n.resolveParents(segments)
	if err != nil {
		return nil, err
	}
	if missing == len(segments) {
		return parent, nil
	}
	cur := parent
	for _, seg := range segments[missing:] {
		dir := NewDirectory()
		cur.Children[seg] = dir
		cur = dir
	}
	return cur, nil
}

// Insert places child at segments, creating missing parent directories.
//
// Insert never overwrites: it returns ErrAlreadyExists if the final name is
// taken or any parent component is a file. On failure the tree is left
// unchanged.
func (n *Node) Insert(segments []string, child *Node) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: empty path", asartype.ErrInvalidPath)
	}
	dirSegments, name := segments[:len(segments)-1], segments[len(segments)-1]
	parent, missing, err := n.resolveParents(dirSegments)
	if err != nil {
		return err
	}
	if missing == len(dirSegments) {
		if _, exists := parent.Children[name]; exists {
			return fmt.Errorf("%w: %s", asartype.ErrAlreadyExists, strings.Join(segments, Separator))
		}
	}
	cur := parent
	for _, seg := range dirSegments[missing:] {
		dir := NewDirectory()
		cur.Children[seg] = dir
		cur = dir
	}
	cur.Children[name] = child
	return nil
}

// resolveParents walks as far down segments as existing directories allow.
// It returns the deepest existing directory and the number of segments
// resolved. A file on the way yields ErrAlreadyExists.
func (n *Node) resolveParents(segments []string) (*Node, int, error) {
	if !n.IsDir() {
		return nil, 0, asartype.ErrNotDirectory
	}
	cur := n
	for i, seg := range segments {
		next, ok := cur.Children[seg]
		if !ok {
			return cur, i, nil
		}
		if !next.IsDir() {
			return nil, 0, fmt.Errorf("%w: %s is a file", asartype.ErrAlreadyExists, strings.Join(segments[:i+1], Separator))
		}
		cur = next
	}
	return cur, len(segments), nil
}

// WalkFunc is called for every node below the walk root.
// segments must be copied if retained.
type WalkFunc func(segments []string, node *Node) error

// Walk visits every node below n depth-first in name order.
// Returning an error from fn stops the walk and returns that error.
func (n *Node) Walk(fn WalkFunc) error {
	return n.walk(nil, fn)
}

func (n *Node) walk(prefix []string, fn WalkFunc) error {
	for _, name := range n.Names() {
		child := n.Children[name]
		segments := append(prefix, name)
		if err := fn(segments, child); err != nil {
			return err
		}
		if child.IsDir() {
			if err := child.walk(segments, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// ContentSize returns the total size of packed file content below n.
func (n *Node) ContentSize() uint64 {
	var total uint64
	_ = n.Walk(func(_ []string, node *Node) error { //nolint:errcheck // callback never fails
		if node.Kind == KindFile && !node.Unpacked {
			total += node.Size
		}
		return nil
	})
	return total
}
