package dto

import (
	"github.com/google/uuid"
	"media-library/constant"
	"time"
)

type UploadInitRequest struct {
	FileName    string `json:"fileName" binding:"required"`
	TotalSize   int64  `json:"totalSize" binding:"required"`
	TotalChunks int    `json:"totalChunks" binding:"required"`
}

type UploadInitResponse struct {
	SessionID string `json:"sessionId"`
	ChunkMax  int64  `json:"chunkMaxBytes"`
}

type ChunkProgress struct {
	SessionID      string `json:"sessionId"`
	ChunkIndex     int    `json:"chunkIndex"`
	ChunksReceived int    `json:"chunksReceived"`
	TotalChunks    int    `json:"totalChunks"`
	Complete       bool   `json:"complete"`
}

type UploadStatus struct {
	SessionID      string    `json:"sessionId"`
	FileName       string    `json:"fileName"`
	ChunksReceived int       `json:"chunksReceived"`
	TotalChunks    int       `json:"totalChunks"`
	MissingChunks  []int     `json:"missingChunks,omitempty"`
	Complete       bool      `json:"complete"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CompleteRequest struct {
	Title    string            `json:"title"`
	Category constant.Category `json:"category"`
	Season   *int              `json:"season,omitempty"`
	Episode  *int              `json:"episode,omitempty"`
}

// TranscodeMessage asks the external transcoding worker to produce quality
// variants for a freshly assembled original.
type TranscodeMessage struct {
	MediaID     uuid.UUID `json:"mediaId"`
	StoragePath string    `json:"storagePath"`
	FileName    string    `json:"fileName"`
}

// VariantMessage announces a finished variant produced by the external
// transcoding worker.
type VariantMessage struct {
	OriginalPath   string           `json:"originalPath"`
	Quality        constant.Quality `json:"quality"`
	TranscodedPath string           `json:"transcodedPath"`
	OriginalSize   int64            `json:"originalSize"`
	TranscodedSize int64            `json:"transcodedSize"`
}

type Finding struct {
	Kind           constant.FindingKind `json:"kind"`
	Path           string               `json:"path,omitempty"`
	MediaID        *uuid.UUID           `json:"mediaId,omitempty"`
	NormalizedName string               `json:"normalizedName,omitempty"`
	Resolution     constant.Quality     `json:"resolution,omitempty"`
	SizeBytes      int64                `json:"sizeBytes,omitempty"`
	// KeptPath names the filesystem-duplicate group member that survives.
	KeptPath string `json:"keptPath,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type ReconcileSummary struct {
	Protected            int   `json:"protected"`
	Orphans              int   `json:"orphans"`
	FilesystemDuplicates int   `json:"filesystemDuplicates"`
	DatabaseDuplicates   int   `json:"databaseDuplicates"`
	Mismatches           int   `json:"mismatches"`
	Missing              int   `json:"missing"`
	ReclaimableBytes     int64 `json:"reclaimableBytes"`
	FilesScanned         int   `json:"filesScanned"`
	RecordsScanned       int   `json:"recordsScanned"`
}

type ReconcileReport struct {
	Findings            []Finding        `json:"findings"`
	Summary             ReconcileSummary `json:"summary"`
	Errors              []FileError      `json:"errors,omitempty"`
	Fixed               int              `json:"fixed,omitempty"`
	StaleVariantsPruned int              `json:"staleVariantsPruned,omitempty"`
}

type CleanupReport struct {
	Removed    []string    `json:"removed"`
	Archived   []string    `json:"archived,omitempty"`
	PrunedDirs []string    `json:"prunedDirs,omitempty"`
	FreedBytes int64       `json:"freedBytes"`
	Errors     []FileError `json:"errors,omitempty"`
}

// StreamSource describes the physical file selected for playback.
type StreamSource struct {
	Path      string           `json:"path"`
	SizeBytes int64            `json:"sizeBytes"`
	Quality   constant.Quality `json:"quality"`
	IsVariant bool             `json:"isVariant"`
}

// PurgeResult reports which deletion steps of a media purge completed, in
// order: variants, thumbnail, original file, catalog row.
type PurgeResult struct {
	VariantsRemoved  int  `json:"variantsRemoved"`
	ThumbnailRemoved bool `json:"thumbnailRemoved"`
	OriginalRemoved  bool `json:"originalRemoved"`
	RecordRemoved    bool `json:"recordRemoved"`
}
