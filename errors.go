package asar

import (
	asarcore "github.com/meigma/asar/core"
	"github.com/meigma/asar/registry"
)

// Archive errors re-exported from core.
var (
	ErrNotFound         = asarcore.ErrNotFound
	ErrNotDirectory     = asarcore.ErrNotDirectory
	ErrNotFile          = asarcore.ErrNotFile
	ErrUnpacked         = asarcore.ErrUnpacked
	ErrInvalidPath      = asarcore.ErrInvalidPath
	ErrAlreadyExists    = asarcore.ErrAlreadyExists
	ErrAlreadyFinalized = asarcore.ErrAlreadyFinalized
	ErrNotInitialized   = asarcore.ErrNotInitialized
	ErrFormat           = asarcore.ErrFormat
	ErrIncompleteRead   = asarcore.ErrIncompleteRead
	ErrIntegrity        = asarcore.ErrIntegrity
	ErrShortSource      = asarcore.ErrShortSource
	ErrHeaderTooLarge   = asarcore.ErrHeaderTooLarge
	ErrSymlink          = asarcore.ErrSymlink
)

// Registry errors re-exported from registry.
var (
	ErrArchiveNotFound  = registry.ErrNotFound
	ErrInvalidReference = registry.ErrInvalidReference
	ErrInvalidManifest  = registry.ErrInvalidManifest
	ErrDigestMismatch   = registry.ErrDigestMismatch
	ErrSizeMismatch     = registry.ErrSizeMismatch
)
