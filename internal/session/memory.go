package session

import (
	"context"
	"sync"
	"time"

	"support-chat-backend/internal/hints"
	"support-chat-backend/internal/inference"
)

// MemoryStore keeps per-session conversation state and auth records in process.
type MemoryStore struct {
	mu          sync.RWMutex
	history     map[string][]inference.Turn
	maxMessages int
	hints       map[string]hints.Hints
	auth        map[string]Auth
}

func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		history:     make(map[string][]inference.Turn),
		maxMessages: maxMessages,
		hints:       make(map[string]hints.Hints),
		auth:        make(map[string]Auth),
	}
}

func (m *MemoryStore) Append(sessionID string, turns ...inference.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[sessionID] = append(m.history[sessionID], turns...)
	m.trimLocked(sessionID)
}

// History returns a copy of the session's turns, oldest first.
func (m *MemoryStore) History(sessionID string) []inference.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turns := m.history[sessionID]
	if len(turns) == 0 {
		return nil
	}
	out := make([]inference.Turn, len(turns))
	copy(out, turns)
	return out
}

func (m *MemoryStore) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	turns := m.history[sessionID]
	if len(turns) > m.maxMessages {
		m.history[sessionID] = append([]inference.Turn(nil), turns[len(turns)-m.maxMessages:]...)
	}
}

func (m *MemoryStore) Hints(sessionID string) hints.Hints {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hints[sessionID]
}

func (m *MemoryStore) SetHints(sessionID string, h hints.Hints) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hints[sessionID] = h
}

// Reset forgets the session's conversation; auth is kept.
func (m *MemoryStore) Reset(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sessionID)
	delete(m.hints, sessionID)
}

func (m *MemoryStore) SaveAuth(_ context.Context, auth Auth) error {
	if err := requireID(auth.SessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if prev, ok := m.auth[auth.SessionID]; ok {
		auth.CreatedAt = prev.CreatedAt
	} else {
		auth.CreatedAt = now
	}
	auth.UpdatedAt = now
	m.auth[auth.SessionID] = auth
	return nil
}

func (m *MemoryStore) GetAuth(_ context.Context, sessionID string) (*Auth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auth[sessionID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryStore) DeleteAuth(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.auth, sessionID)
	return nil
}
