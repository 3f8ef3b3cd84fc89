package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store defines how usage sessions are persisted and retrieved.
// Get returns (nil, nil) for an unknown id so callers can distinguish a miss
// from a store failure.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s Session) error
	// Touch atomically extends an open session's liveness to ts. Returns
	// false when the session is unknown or already closed; the check and
	// write happen as one step so a concurrent close is never overwritten.
	Touch(ctx context.Context, id string, ts time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) (int, error)
	// ListByUser returns all sessions for a user, most recent StartTime first.
	ListByUser(ctx context.Context, userID string) ([]Session, error)
	// ListOpen returns every session without an EndTime, for staleness sweeps.
	ListOpen(ctx context.Context) ([]Session, error)
}

// MemoryStore implements Store with in-memory maps, suitable for tests and
// Redis-less deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byUser   map[string][]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		byUser:   make(map[string][]string),
	}
}

func (m *MemoryStore) Create(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	m.byUser[s.UserID] = append(m.byUser[s.UserID], s.ID)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := s
	return &copied, nil
}

func (m *MemoryStore) Update(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return nil
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, ts time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Closed() {
		return false, nil
	}
	s.LastHeartbeat = ts
	m.sessions[id] = s
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	ids := m.byUser[s.UserID]
	for i, sid := range ids {
		if sid == id {
			m.byUser[s.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.byUser[userID]
	for _, id := range ids {
		delete(m.sessions, id)
	}
	delete(m.byUser, userID)
	return len(ids), nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byUser[userID]
	result := make([]Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.After(result[j].StartTime)
	})
	return result, nil
}

func (m *MemoryStore) ListOpen(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []Session
	for _, s := range m.sessions {
		if !s.Closed() {
			result = append(result, s)
		}
	}
	return result, nil
}
