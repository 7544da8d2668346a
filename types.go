package asar

import (
	asarcore "github.com/meigma/asar/core"
	"github.com/meigma/asar/registry"
)

// Archive building and reading types from the core package.
type (
	// Writer builds an archive.
	Writer = asarcore.Writer

	// Reader reads a loaded archive from a RangeSource.
	Reader = asarcore.Reader

	// File is an archive opened from disk.
	File = asarcore.File

	// Entry describes a directory or file in a loaded archive.
	Entry = asarcore.Entry

	// EntryKind discriminates directory and file entries.
	EntryKind = asarcore.EntryKind

	// Integrity records content hashes for a file.
	Integrity = asarcore.Integrity

	// RangeSource fetches exact byte ranges of an archive.
	RangeSource = asarcore.RangeSource

	// StreamingSource is a RangeSource that streams arbitrary windows natively.
	StreamingSource = asarcore.StreamingSource

	// WriterOption configures a Writer.
	WriterOption = asarcore.WriterOption

	// ReaderOption configures a Reader.
	ReaderOption = asarcore.ReaderOption

	// FileOption configures a single archive member.
	FileOption = asarcore.FileOption

	// ExtractOption configures Reader.Extract and Reader.ExtractDir.
	ExtractOption = asarcore.ExtractOption
)

// Constructors re-exported from the core package.
var (
	NewWriter = asarcore.NewWriter
	NewReader = asarcore.NewReader
	OpenFile  = asarcore.OpenFile
)

// Writer and member options re-exported from the core package.
var (
	WithComputeIntegrity  = asarcore.WithComputeIntegrity
	WithShortSourcePolicy = asarcore.WithShortSourcePolicy
	WithExecutable        = asarcore.WithExecutable
	WithFileIntegrity     = asarcore.WithFileIntegrity
)

// Extraction options re-exported from the core package.
var (
	ExtractWithOverwrite    = asarcore.ExtractWithOverwrite
	ExtractWithPreserveMode = asarcore.ExtractWithPreserveMode
	ExtractWithDirectWrites = asarcore.ExtractWithDirectWrites
	ExtractWithWorkers      = asarcore.ExtractWithWorkers
)

// Registry media types.
const (
	// ArtifactType identifies archive manifests.
	ArtifactType = registry.ArtifactType

	// MediaTypeArchive is the media type of the archive layer.
	MediaTypeArchive = registry.MediaTypeArchive
)

// Entry kinds.
const (
	KindDirectory = asarcore.KindDirectory
	KindFile      = asarcore.KindFile
)
