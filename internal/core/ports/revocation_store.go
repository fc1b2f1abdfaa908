package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// RevocationStore is the durable set of revoked token identifiers. Every token
// validation pays one IsRevoked call, so implementations index on jti.
type RevocationStore interface {
	// Revoke appends a record. Revoking an already revoked jti is a no-op.
	Revoke(ctx context.Context, token domain.RevokedToken) error

	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PruneExpired drops records whose token expired before the cutoff and
	// returns how many were removed.
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}

// SessionStore holds server-side sessions keyed by handle digest with a
// secondary index by principal.
type SessionStore interface {
	Create(ctx context.Context, session domain.Session) error

	// Get returns domain.ErrSessionNotFound when the id is unknown.
	Get(ctx context.Context, id string) (domain.Session, error)

	// Delete is idempotent.
	Delete(ctx context.Context, id string) error

	// ListByPrincipal returns the ids of every session held by the principal.
	ListByPrincipal(ctx context.Context, principal string) ([]string, error)
}
