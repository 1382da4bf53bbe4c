package memory

import (
	"context"
	"sync"
	"time"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions not saved within ttl expire lazily on read.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]storedSession
}

type storedSession struct {
	session   app.Session
	expiresAt time.Time
}

// NewSessionStore keeps sessions for ttl after their last save; ttl <= 0
// keeps them until deleted.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Get(_ context.Context, id string) (app.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return app.Session{}, domain.ErrSessionNotFound
	}
	if s.expired(entry) {
		s.mu.Lock()
		if current, ok := s.sessions[id]; ok && s.expired(current) {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		return app.Session{}, domain.ErrSessionNotFound
	}
	return entry.session, nil
}

func (s *SessionStore) Save(_ context.Context, session app.Session) error {
	entry := storedSession{session: session}
	if s.ttl > 0 {
		entry.expiresAt = s.clock().Add(s.ttl)
	}
	s.mu.Lock()
	s.sessions[session.ID] = entry
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(entry storedSession) bool {
	return !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.clock())
}
