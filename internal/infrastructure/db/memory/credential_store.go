// Package memory holds process-local store implementations. They back the
// "memory" store backend and the service and API test suites.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// CredentialStore keeps users in maps guarded by a RWMutex. Users are value
// types, so reads never hand out shared state.
type CredentialStore struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byUsername map[string]string
	byEmail    map[string]string
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		byID:       make(map[string]domain.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (s *CredentialStore) FindByUsername(_ context.Context, username string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.byID[id], nil
}

// Insert enforces the same uniqueness rules as the SQL schema: username is
// case sensitive, email is compared lower-cased and only when present.
func (s *CredentialStore) Insert(_ context.Context, user domain.User) (domain.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email())
	if _, ok := s.byID[user.ID()]; ok {
		return domain.AlreadyExists{}, nil
	}
	if _, ok := s.byUsername[user.Username()]; ok {
		return domain.AlreadyExists{}, nil
	}
	if email != "" {
		if _, ok := s.byEmail[email]; ok {
			return domain.AlreadyExists{}, nil
		}
		s.byEmail[email] = user.ID()
	}

	s.byID[user.ID()] = user
	s.byUsername[user.Username()] = user.ID()
	return domain.Inserted{}, nil
}

func (s *CredentialStore) UpdatePassword(_ context.Context, id string, hash domain.PasswordHash, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	s.byID[id] = u.WithPasswordHash(hash, at)
	return nil
}

// Len returns the number of stored users.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
