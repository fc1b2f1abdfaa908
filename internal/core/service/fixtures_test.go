package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/infrastructure/db/memory"
	"github.com/99minutos/identity-service/internal/infrastructure/security"
	"github.com/99minutos/identity-service/internal/infrastructure/system"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

// plainHasher is a fast reversible stand-in for bcrypt that counts calls.
type plainHasher struct {
	hashes     atomic.Int32
	verifies   atomic.Int32
	failHash   bool
	failVerify bool
}

func (h *plainHasher) Hash(raw string) (string, error) {
	h.hashes.Add(1)
	if h.failHash {
		return "", errors.New("hasher unavailable")
	}
	return "plain:" + raw, nil
}

func (h *plainHasher) Verify(raw, hash string) (bool, error) {
	h.verifies.Add(1)
	if h.failVerify {
		return false, errors.New("hasher unavailable")
	}
	return hash == "plain:"+raw, nil
}

type sequentialIDs struct {
	prefix string
	n      atomic.Int64
}

func (g *sequentialIDs) NewID() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}

// failingStore fails every call with err.
type failingStore struct{ err error }

func (s failingStore) FindByUsername(context.Context, string) (domain.User, error) {
	return domain.User{}, s.err
}

func (s failingStore) Insert(context.Context, domain.User) (domain.InsertResult, error) {
	return nil, s.err
}

func (s failingStore) UpdatePassword(context.Context, string, domain.PasswordHash, time.Time) error {
	return s.err
}

type failingRevocations struct{ err error }

func (s failingRevocations) Revoke(context.Context, domain.RevokedToken) error { return s.err }
func (s failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, s.err
}
func (s failingRevocations) PruneExpired(context.Context, time.Time) (int64, error) {
	return 0, s.err
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	clock       *system.ManualClock
	hasher      *plainHasher
	policy      *security.Policy
	users       *memory.CredentialStore
	sessions    *memory.SessionStore
	revocations *memory.RevocationStore
	factory     *UserFactory
	auth        *AuthService
	sessionIss  *SessionIssuer
	tokenIss    *TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:       system.NewManualClock(epoch),
		hasher:      &plainHasher{},
		policy:      security.NewPolicy(),
		users:       memory.NewCredentialStore(),
		sessions:    memory.NewSessionStore(),
		revocations: memory.NewRevocationStore(),
	}
	f.factory = NewUserFactory(f.policy, f.hasher, f.clock, &sequentialIDs{prefix: "user"})

	auth, err := NewAuthService(f.users, f.factory, f.policy, f.hasher, f.clock, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	f.auth = auth

	f.sessionIss = NewSessionIssuer(f.sessions, f.clock, 30*time.Minute, zerolog.Nop())
	f.tokenIss = f.newTokenIssuer(t, 24*time.Hour)
	return f
}

func (f *fixture) newTokenIssuer(t *testing.T, ttl time.Duration) *TokenIssuer {
	t.Helper()
	iss, err := NewTokenIssuer([]byte(testSecret), ttl, f.clock,
		&sequentialIDs{prefix: "jti"}, system.ULIDGenerator{Clock: f.clock},
		f.revocations, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return iss
}

// signup registers a user through the auth service and fails the test on any
// outcome other than SignupCreated.
func (f *fixture) signup(t *testing.T, username, password string) domain.User {
	t.Helper()
	res, err := f.auth.Signup(context.Background(), username, password, "")
	if err != nil {
		t.Fatalf("Signup(%s): %v", username, err)
	}
	created, ok := res.(domain.SignupCreated)
	if !ok {
		t.Fatalf("Signup(%s): expected SignupCreated, got %T %+v", username, res, res)
	}
	return created.User
}

// insertUser stores a user directly, bypassing the factory.
func (f *fixture) insertUser(t *testing.T, username, password string, enabled bool, roles ...domain.Role) domain.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []domain.Role{domain.DefaultRole}
	}
	hash, err := domain.HashPassword(f.hasher, password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := domain.NewUser(domain.UserParams{
		ID:           "id-" + strings.ToLower(username),
		Username:     username,
		PasswordHash: hash,
		Enabled:      enabled,
		CreatedAt:    f.clock.Now(),
		UpdatedAt:    f.clock.Now(),
		Roles:        roles,
	})
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if _, err := f.users.Insert(context.Background(), u); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return u
}
