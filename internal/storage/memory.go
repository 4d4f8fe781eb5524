package storage

import (
	"context"
	"sync"

	"github.com/AmjadKudsi/walmart-bill-splitter/internal/models"
	"github.com/AmjadKudsi/walmart-bill-splitter/internal/session"
)

// MemoryStore is an in-process Store. It backs tests and single-node
// deployments that can afford to lose in-flight sessions on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session.Session)}
}

// CreateSession stores a snapshot of the session.
func (m *MemoryStore) CreateSession(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Snapshot()
	return nil
}

// GetSession returns a snapshot of the session.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Snapshot(), nil
}

// ReplaceAssignment swaps the assignment under the store lock, which is
// the single-writer discipline for in-memory sessions.
func (m *MemoryStore) ReplaceAssignment(_ context.Context, id string, a models.Assignment, expectVersion int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	if err := s.ReplaceAssignment(a, expectVersion); err != nil {
		return 0, err
	}
	return s.Version, nil
}

// AddItem appends a custom item and returns its index.
func (m *MemoryStore) AddItem(_ context.Context, id string, item models.LineItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return 0, ErrNotFound
	}
	return s.AddItem(item), nil
}

// DeleteSession removes the session if present.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
