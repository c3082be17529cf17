// Package session persists per-upload bookkeeping: which chunks of an
// in-flight chunked upload have landed on disk.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("upload session not found")
	ErrChunkOutOfRange = errors.New("chunk index out of range")
)

type Session struct {
	ID          string `json:"id"`
	FileName    string `json:"fileName"`
	TotalSize   int64  `json:"totalSize"`
	TotalChunks int    `json:"totalChunks"`
	// ReceivedChunks is kept sorted and duplicate-free.
	ReceivedChunks []int     `json:"receivedChunks"`
	OwnerID        string    `json:"ownerId"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *Session) Has(index int) bool {
	for _, received := range s.ReceivedChunks {
		if received == index {
			return true
		}
	}
	return false
}

// Complete reports whether every chunk in [0, TotalChunks) has been received.
func (s *Session) Complete() bool {
	return len(s.ReceivedChunks) == s.TotalChunks
}

// MissingChunks returns the indices still outstanding, ascending.
func (s *Session) MissingChunks() []int {
	received := make(map[int]struct{}, len(s.ReceivedChunks))
	for _, idx := range s.ReceivedChunks {
		received[idx] = struct{}{}
	}
	var missing []int
	for i := 0; i < s.TotalChunks; i++ {
		if _, ok := received[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

func (s *Session) validateIndex(index int) error {
	if index < 0 || index >= s.TotalChunks {
		return fmt.Errorf("%w: %d of %d", ErrChunkOutOfRange, index, s.TotalChunks)
	}
	return nil
}

// Store is the session persistence abstraction. RecordChunk is the critical
// operation: implementations must serialize concurrent calls for the same
// session and re-read current state rather than trusting a cached copy.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Session, error)
	// RecordChunk marks index received and returns the updated received
	// count. Repeated delivery of the same index is a no-op success.
	RecordChunk(ctx context.Context, id string, index int) (int, error)
}
