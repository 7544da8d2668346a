package asartype

// ProgressEvent represents a progress update during write, push, or pull operations.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the archive member currently being processed, if applicable.
	Path string

	// BytesDone is the number of bytes completed in the current operation.
	BytesDone uint64

	// BytesTotal is the total bytes for the current operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FilesDone is the number of members completed.
	FilesDone int

	// FilesTotal is the total number of members.
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for write, push, and pull operations.
const (
	// StageSplicing indicates member content is being concatenated into the archive stream.
	StageSplicing ProgressStage = iota

	// StagePushingArchive indicates the archive blob is being uploaded.
	StagePushingArchive

	// StageFetchingManifest indicates the manifest is being fetched.
	StageFetchingManifest

	// StageFetchingHeader indicates the archive header is being fetched.
	StageFetchingHeader
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageSplicing:
		return "splicing"
	case StagePushingArchive:
		return "pushing archive"
	case StageFetchingManifest:
		return "fetching manifest"
	case StageFetchingHeader:
		return "fetching header"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
type ProgressFunc func(ProgressEvent)
