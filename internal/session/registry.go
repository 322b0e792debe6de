// Package session tracks live conversations. Each session owns its own
// ledger so concurrent conversations never serialize on shared state.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/kotoba-ai/kotoba-assistant/internal/ledger"
	"github.com/kotoba-ai/kotoba-assistant/internal/model"
)

// Session is one live conversation.
type Session struct {
	ID          string
	CharacterID string
	Ledger      *ledger.Ledger
	CreatedAt   time.Time

	mu           sync.Mutex
	lastActive   time.Time
	messageCount int
}

// Touch bumps the activity timestamp and message counter.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now().UTC()
	s.messageCount++
}

// LastActive returns the last activity timestamp.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// MessageCount returns the number of completed exchanges.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// SetCharacter records the active persona for the session.
func (s *Session) SetCharacter(characterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CharacterID = characterID
}

// Character returns the active persona id.
func (s *Session) Character() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CharacterID
}

// Registry is the in-process session catalog.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	now := time.Now().UTC()
	s := &Session{ID: id, Ledger: ledger.New(), CreatedAt: now, lastActive: now}
	r.sessions[id] = s
	return s
}

// Get returns the session for id, or model.ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return s, nil
}

// Delete removes a session. Returns model.ErrNotFound for unknown ids.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

// List returns all sessions ordered by creation time, newest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
