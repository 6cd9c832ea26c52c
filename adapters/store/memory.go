package store

import (
	"slices"
	"sync"

	"github.com/satriahrh/cocoa-fruit/relay/domain"
)

type transcript struct {
	mu       sync.RWMutex
	messages []domain.ChatMessage
}

// MemoryStore implements domain.SessionStore in process memory. Sessions
// live until the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*transcript
}

var _ domain.SessionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*transcript),
	}
}

func (m *MemoryStore) lookup(id string) *transcript {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *MemoryStore) Ensure(id string) {
	if m.lookup(id) != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		m.sessions[id] = &transcript{}
	}
}

func (m *MemoryStore) Append(id string, msg domain.ChatMessage) error {
	t := m.lookup(id)
	if t == nil {
		return domain.ErrSessionNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	return nil
}

func (m *MemoryStore) Get(id string) ([]domain.ChatMessage, bool) {
	t := m.lookup(id)
	if t == nil {
		return []domain.ChatMessage{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.messages == nil {
		return []domain.ChatMessage{}, true
	}
	return slices.Clone(t.messages), true
}

func (m *MemoryStore) Clear(id string) {
	t := m.lookup(id)
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
}

// Len returns the number of known sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
