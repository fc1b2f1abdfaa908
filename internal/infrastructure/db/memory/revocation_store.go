package memory

import (
	"context"
	"sync"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// RevocationStore keeps revoked token records keyed by jti.
type RevocationStore struct {
	mu      sync.RWMutex
	records map[string]domain.RevokedToken
}

var _ ports.RevocationStore = (*RevocationStore)(nil)

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{records: make(map[string]domain.RevokedToken)}
}

// Revoke keeps the first record for a jti.
func (s *RevocationStore) Revoke(_ context.Context, token domain.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[token.JTI]; ok {
		return nil
	}
	s.records[token.JTI] = token
	return nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[jti]
	return ok, nil
}

func (s *RevocationStore) PruneExpired(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for jti, rec := range s.records {
		if rec.ExpiresAt.Before(before) {
			delete(s.records, jti)
			n++
		}
	}
	return n, nil
}

// Get returns the stored record for a jti.
func (s *RevocationStore) Get(jti string) (domain.RevokedToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[jti]
	return rec, ok
}
