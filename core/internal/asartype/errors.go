package asartype

import "errors"

// Sentinel errors shared by the archive engine packages.
var (
	// ErrAlreadyFinalized is returned when a Writer is mutated or finalized
	// after Finalize has been called.
	ErrAlreadyFinalized = errors.New("asar: archive already finalized")

	// ErrAlreadyExists is returned when a name is added twice or a path
	// component is already occupied by a file.
	ErrAlreadyExists = errors.New("asar: entry already exists")

	// ErrInvalidPath is returned when a path segment is empty, relative
	// ("." or ".."), or contains a reserved character.
	ErrInvalidPath = errors.New("asar: invalid path")

	// ErrNotFound is returned when a path does not resolve to an entry.
	ErrNotFound = errors.New("asar: entry not found")

	// ErrNotInitialized is returned when a Reader is queried before its
	// header has been loaded.
	ErrNotInitialized = errors.New("asar: header not loaded")

	// ErrIncompleteRead is returned when a range source delivers fewer bytes
	// than were requested.
	ErrIncompleteRead = errors.New("asar: incomplete read")

	// ErrFormat is returned when header bytes fail to decode.
	ErrFormat = errors.New("asar: invalid header format")

	// ErrNotDirectory is returned when a directory operation targets a file.
	ErrNotDirectory = errors.New("asar: not a directory")

	// ErrNotFile is returned when a content operation targets a directory.
	ErrNotFile = errors.New("asar: not a file")

	// ErrUnpacked is returned when reading a file whose content is stored
	// outside the archive.
	ErrUnpacked = errors.New("asar: file content is unpacked")

	// ErrShortSource is returned when a spliced source ends before producing
	// its declared size.
	ErrShortSource = errors.New("asar: source shorter than declared size")

	// ErrIntegrity is returned when file content does not match its recorded
	// integrity hash.
	ErrIntegrity = errors.New("asar: integrity mismatch")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("asar: size overflow")

	// ErrHeaderTooLarge is returned when a declared header length exceeds the
	// configured limit.
	ErrHeaderTooLarge = errors.New("asar: header too large")

	// ErrSymlink is returned when a symbolic link is added as a file.
	ErrSymlink = errors.New("asar: symbolic links not supported")
)
