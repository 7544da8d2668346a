package batch

import (
	"io"

	"github.com/opencontainers/go-digest"
)

// Entry is a file scheduled for extraction.
type Entry struct {
	// Path is the slash-separated archive path of the file.
	Path string

	// Offset is the absolute archive offset of the file content.
	Offset int64

	// Size is the content length in bytes.
	Size int64

	// Executable marks files written with execute permission when modes
	// are applied.
	Executable bool

	// Digest, if set, must match the written content.
	Digest digest.Digest
}

// Sink receives file content during batch processing.
//
// Implementations determine where content is written and can filter which
// entries to process.
type Sink interface {
	// ShouldProcess returns false if this entry should be skipped, for
	// example because the destination already exists.
	ShouldProcess(entry *Entry) bool

	// Writer returns a writer for the entry's content.
	// The returned Committer must have Commit() called after a successful
	// write and verification, or Discard() called on any error.
	Writer(entry *Entry) (Committer, error)
}

// Committer is a writer that can be committed or discarded.
//
// Implementations should stage writes until Commit is called. A file-based
// implementation writes to a temp file and renames it on Commit.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}
