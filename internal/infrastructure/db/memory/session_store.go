package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// SessionStore keeps sessions by digest with a per-principal index. Expired
// sessions are left in place; the issuer rejects and deletes them on access.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]domain.Session
	byPrincipal map[string]map[string]struct{}
}

var _ ports.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]domain.Session),
		byPrincipal: make(map[string]map[string]struct{}),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.Authorities = slices.Clone(session.Authorities)
	s.sessions[session.ID] = session
	idx, ok := s.byPrincipal[session.Principal]
	if !ok {
		idx = make(map[string]struct{})
		s.byPrincipal[session.Principal] = idx
	}
	idx[session.ID] = struct{}{}
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session.Authorities = slices.Clone(session.Authorities)
	return session, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil
	}
	delete(s.sessions, id)
	if idx, ok := s.byPrincipal[session.Principal]; ok {
		delete(idx, id)
		if len(idx) == 0 {
			delete(s.byPrincipal, session.Principal)
		}
	}
	return nil
}

func (s *SessionStore) ListByPrincipal(_ context.Context, principal string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.byPrincipal[principal]))
	for id := range s.byPrincipal[principal] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
