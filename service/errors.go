package service

import (
	"errors"
	"fmt"
	"media-library/session"
)

var (
	ErrForbidden          = errors.New("caller does not own this resource")
	ErrPayloadTooLarge    = errors.New("chunk exceeds configured maximum size")
	ErrChunkMissing       = errors.New("recorded chunk missing on disk")
	ErrQualityUnavailable = errors.New("no rendition satisfies the quality ceiling")
	ErrFileNotFound       = errors.New("media file not found")
	ErrConfirmRequired    = errors.New("cleanup is destructive and requires explicit confirmation")

	// ErrSessionNotFound aliases the store sentinel so callers can match
	// either.
	ErrSessionNotFound = session.ErrNotFound
)

// IncompleteUploadError reports the exact chunk indices still outstanding
// so clients retry only those instead of re-uploading everything.
type IncompleteUploadError struct {
	Missing []int
}

func (e *IncompleteUploadError) Error() string {
	return fmt.Sprintf("upload incomplete, missing chunks %v", e.Missing)
}
