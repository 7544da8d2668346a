package asar

import (
	"github.com/meigma/asar/core/internal/asartype"
	"github.com/meigma/asar/core/internal/index"
	"github.com/meigma/asar/core/internal/splice"
)

// Re-export types from internal packages for the public API.
type (
	// Chunk is the payload of one range request: a buffer or a stream.
	Chunk = asartype.Chunk

	// RangeSource fetches exact byte ranges of an archive.
	RangeSource = asartype.RangeSource

	// StreamingSource is a RangeSource that streams arbitrary windows natively.
	StreamingSource = asartype.StreamingSource

	// SourceIdentifier is implemented by sources with a stable content identity.
	SourceIdentifier = asartype.SourceIdentifier

	// RangeSourceFunc adapts a function to a RangeSource.
	RangeSourceFunc = asartype.RangeSourceFunc

	// Integrity records content hashes for a file.
	Integrity = index.Integrity

	// EntryKind discriminates directory and file entries.
	EntryKind = index.Kind

	// ShortSourcePolicy decides what happens when a source added to a Writer
	// ends before its declared size.
	ShortSourcePolicy = splice.ShortSourcePolicy

	// ProgressEvent represents a progress update during operations.
	ProgressEvent = asartype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = asartype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = asartype.ProgressFunc
)

// Chunk constructors.
var (
	BufferChunk = asartype.BufferChunk
	StreamChunk = asartype.StreamChunk
)

// Entry kinds.
const (
	KindDirectory = index.KindDirectory
	KindFile      = index.KindFile
)

// Short source policies.
const (
	ShortSourceError    = splice.ShortSourceError
	ShortSourceZeroFill = splice.ShortSourceZeroFill
)

// Re-export progress stage constants.
const (
	StageSplicing         = asartype.StageSplicing
	StagePushingArchive   = asartype.StagePushingArchive
	StageFetchingManifest = asartype.StageFetchingManifest
	StageFetchingHeader   = asartype.StageFetchingHeader
)

// Sentinel errors re-exported from internal/asartype.
var (
	ErrAlreadyFinalized = asartype.ErrAlreadyFinalized
	ErrAlreadyExists    = asartype.ErrAlreadyExists
	ErrInvalidPath      = asartype.ErrInvalidPath
	ErrNotFound         = asartype.ErrNotFound
	ErrNotInitialized   = asartype.ErrNotInitialized
	ErrIncompleteRead   = asartype.ErrIncompleteRead
	ErrFormat           = asartype.ErrFormat
	ErrNotDirectory     = asartype.ErrNotDirectory
	ErrNotFile          = asartype.ErrNotFile
	ErrUnpacked         = asartype.ErrUnpacked
	ErrShortSource      = asartype.ErrShortSource
	ErrIntegrity        = asartype.ErrIntegrity
	ErrSizeOverflow     = asartype.ErrSizeOverflow
	ErrHeaderTooLarge   = asartype.ErrHeaderTooLarge
	ErrSymlink          = asartype.ErrSymlink
)

// Entry describes a directory or file in a loaded archive.
type Entry struct {
	// Path is the slash-separated path of the entry. The root is ".".
	Path string

	// Kind is KindDirectory or KindFile.
	Kind EntryKind

	// Size is the file length in bytes. Zero for directories.
	Size uint64

	// Offset is the file's position relative to the start of the content
	// region. Add the header size for the absolute archive offset.
	Offset uint64

	// Executable marks files restored with execute permission.
	Executable bool

	// Unpacked marks files whose content is stored outside the archive.
	Unpacked bool

	// Integrity holds optional content hashes.
	Integrity *Integrity
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

func entryFromNode(path string, n *index.Node) Entry {
	if path == "" {
		path = "."
	}
	e := Entry{Path: path, Kind: n.Kind}
	if n.Kind == KindFile {
		e.Size = n.Size
		e.Offset = n.Offset
		e.Executable = n.Executable
		e.Unpacked = n.Unpacked
		e.Integrity = n.Integrity
	}
	return e
}
