package session

import (
	"context"
	"encoding/json"
	"fmt"
	"media-library/pkg/lockfile"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// getRetries covers the race between session creation and the first
	// chunk arriving on another connection.
	getRetries    = 3
	getRetryDelay = 25 * time.Millisecond
)

// FileStore keeps one JSON document per session, named by session id.
// Writes go to a temp path and are renamed over the original so a crash
// mid-write cannot corrupt the record.
type FileStore struct {
	dir   string
	locks *lockfile.Manager
}

func NewFileStore(dir string, locks *lockfile.Manager) *FileStore {
	return &FileStore{dir: dir, locks: locks}
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s.json", id))
}

func (f *FileStore) Put(ctx context.Context, s *Session) error {
	if err := os.MkdirAll(f.dir, os.ModePerm); err != nil {
		return err
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tmp := f.path(s.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(s.ID))
}

func (f *FileStore) read(id string) (*Session, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}
	return &s, nil
}

func (f *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	var s *Session
	var err error
	for attempt := 0; attempt < getRetries; attempt++ {
		if s, err = f.read(id); err == nil {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(getRetryDelay):
		}
	}
	return nil, err
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(f.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]*Session, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		s, err := f.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (f *FileStore) RecordChunk(ctx context.Context, id string, index int) (int, error) {
	if err := f.locks.Acquire(ctx, id); err != nil {
		return 0, err
	}
	defer f.locks.Release(id)

	// Re-read under the lock; a concurrent chunk may have landed since
	// the caller last saw this session.
	s, err := f.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	if err := s.validateIndex(index); err != nil {
		return len(s.ReceivedChunks), err
	}
	if s.Has(index) {
		return len(s.ReceivedChunks), nil
	}

	s.ReceivedChunks = append(s.ReceivedChunks, index)
	sort.Ints(s.ReceivedChunks)

	if err := f.Put(ctx, s); err != nil {
		return 0, err
	}
	return len(s.ReceivedChunks), nil
}
