package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dialkit/dialkit/pkg/models"
)

// MemoryStore provides an in-memory Store implementation. Sessions live
// for the duration of the process; durability across restarts is handled
// by SQLiteStore.
//
// Thread Safety:
// MemoryStore is safe for concurrent use. Sessions are cloned on read and
// write so callers never alias stored state.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.CallSession
	nowFunc  func() time.Time
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*models.CallSession{},
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (m *MemoryStore) SetNowFunc(fn func() time.Time) {
	m.nowFunc = fn
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, callID string) (*models.CallSession, error) {
	if callID == "" {
		return nil, errors.New("sessions: call id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[callID]; ok {
		return cloneSession(session), nil
	}
	session := newSession(callID, m.nowFunc())
	m.sessions[callID] = session
	return cloneSession(session), nil
}

func (m *MemoryStore) Get(ctx context.Context, callID string) (*models.CallSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) Put(ctx context.Context, session *models.CallSession) error {
	if session == nil || session.CallID == "" {
		return errors.New("sessions: session with call id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.CallID] = cloneSession(session)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, callID)
	return nil
}

func (m *MemoryStore) StaleIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, session := range m.sessions {
		if session.LastInteraction.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *MemoryStore) Sweep(ctx context.Context, idleThreshold time.Duration) (int, error) {
	cutoff := m.nowFunc().Add(-idleThreshold)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, session := range m.sessions {
		if session.LastInteraction.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
