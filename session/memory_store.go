package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is the in-memory Store used by tests and single-process
// deployments that do not need sessions to survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func clone(s *Session) *Session {
	c := *s
	c.ReceivedChunks = append([]int(nil), s.ReceivedChunks...)
	return &c
}

func (m *MemoryStore) Put(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(s), nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, clone(s))
	}
	return sessions, nil
}

func (m *MemoryStore) RecordChunk(ctx context.Context, id string, index int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.validateIndex(index); err != nil {
		return len(s.ReceivedChunks), err
	}
	if s.Has(index) {
		return len(s.ReceivedChunks), nil
	}
	s.ReceivedChunks = append(s.ReceivedChunks, index)
	sort.Ints(s.ReceivedChunks)
	return len(s.ReceivedChunks), nil
}
