package asar

import asarcore "github.com/meigma/asar/core"

// Progress types re-exported from core.
type (
	// ProgressEvent represents a progress update during operations.
	ProgressEvent = asarcore.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = asarcore.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = asarcore.ProgressFunc
)

// Progress stages.
const (
	StageSplicing         = asarcore.StageSplicing
	StagePushingArchive   = asarcore.StagePushingArchive
	StageFetchingManifest = asarcore.StageFetchingManifest
	StageFetchingHeader   = asarcore.StageFetchingHeader
)
