package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const defaultSessionTTL = 30 * time.Minute

// SessionIssuer implements server-side sessions. The client holds a random
// handle; the store only ever sees its digest.
type SessionIssuer struct {
	store ports.SessionStore
	clock ports.Clock
	ttl   time.Duration
	log   zerolog.Logger
}

var _ ports.CredentialIssuer = (*SessionIssuer)(nil)

// NewSessionIssuer returns a SessionIssuer. If ttl <= 0, 30 minutes is used.
func NewSessionIssuer(store ports.SessionStore, clock ports.Clock, ttl time.Duration, log zerolog.Logger) *SessionIssuer {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionIssuer{store: store, clock: clock, ttl: ttl, log: log}
}

// CreateSession records a session for the principal and returns the handle to
// hand to the client.
func (s *SessionIssuer) CreateSession(ctx context.Context, principal domain.Principal) (domain.SessionHandle, domain.Session, error) {
	handle, err := domain.NewSessionHandle()
	if err != nil {
		return "", domain.Session{}, err
	}

	now := s.clock.Now()
	session := domain.Session{
		ID:          handle.Digest(),
		UserID:      principal.UserID,
		Principal:   principal.Username,
		Authorities: domain.Authorities(principal.Roles),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return "", domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	metrics.CredentialsIssuedTotal.WithLabelValues(string(domain.CredentialSession)).Inc()
	return handle, session, nil
}

// ValidateSession resolves a handle to its principal. Expired sessions are
// deleted on access and reported as domain.ErrSessionExpired.
func (s *SessionIssuer) ValidateSession(ctx context.Context, handle domain.SessionHandle) (domain.Principal, error) {
	if len(handle) != domain.SessionHandleBytes*2 {
		return domain.Principal{}, domain.ErrSessionNotFound
	}

	id := handle.Digest()
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Principal{}, err
	}
	if session.ExpiredAt(s.clock.Now()) {
		if err := s.store.Delete(ctx, id); err != nil {
			s.log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return domain.Principal{}, domain.ErrSessionExpired
	}

	return domain.Principal{
		UserID:       session.UserID,
		Username:     session.Principal,
		Roles:        domain.RolesFromAuthorities(session.Authorities),
		CredentialID: session.ID,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

// InvalidateSession deletes the session bound to handle. Unknown handles are
// not an error.
func (s *SessionIssuer) InvalidateSession(ctx context.Context, handle domain.SessionHandle) error {
	return s.delete(ctx, handle.Digest(), domain.ReasonLogout)
}

// InvalidateAllSessionsForPrincipal enumerates and deletes every session held
// by principal. A session created while this runs may survive.
func (s *SessionIssuer) InvalidateAllSessionsForPrincipal(ctx context.Context, principal string) (int, error) {
	ids, err := s.store.ListByPrincipal(ctx, principal)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	var errs []error
	n := 0
	for _, id := range ids {
		if err := s.delete(ctx, id, domain.ReasonPasswordChanged); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	if len(errs) > 0 {
		return n, fmt.Errorf("invalidate sessions for %s: %w", principal, errors.Join(errs...))
	}
	s.log.Info().Str("username", principal).Int("sessions", n).Msg("sessions invalidated")
	return n, nil
}

func (s *SessionIssuer) delete(ctx context.Context, id string, reason domain.RevocationReason) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	metrics.CredentialsInvalidatedTotal.WithLabelValues(string(domain.CredentialSession), string(reason)).Inc()
	return nil
}

// ── CredentialIssuer ─────────────────────────────────────────────────────────

func (s *SessionIssuer) Kind() domain.CredentialKind { return domain.CredentialSession }

func (s *SessionIssuer) Issue(ctx context.Context, user domain.User) (domain.Credential, error) {
	handle, session, err := s.CreateSession(ctx, domain.PrincipalFor(user))
	if err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{Kind: domain.CredentialSession, Value: string(handle), ExpiresAt: session.ExpiresAt}, nil
}

func (s *SessionIssuer) Verify(ctx context.Context, raw string) (domain.Principal, error) {
	return s.ValidateSession(ctx, domain.SessionHandle(raw))
}

func (s *SessionIssuer) Invalidate(ctx context.Context, p domain.Principal) error {
	return s.delete(ctx, p.CredentialID, domain.ReasonLogout)
}

// InvalidateForPasswordChange ends every session of the principal, including
// the one the change was made from.
func (s *SessionIssuer) InvalidateForPasswordChange(ctx context.Context, p domain.Principal) error {
	_, err := s.InvalidateAllSessionsForPrincipal(ctx, p.Username)
	return err
}
