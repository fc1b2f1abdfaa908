package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// RevocationStore persists revoked tokens in revoked_tokens, unique on jti.
type RevocationStore struct {
	pool poolIface
}

var _ ports.RevocationStore = (*RevocationStore)(nil)

func NewRevocationStore(pool poolIface) *RevocationStore {
	return &RevocationStore{pool: pool}
}

func (s *RevocationStore) Revoke(ctx context.Context, token domain.RevokedToken) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO revoked_tokens (id, jti, revoked_at, reason, revoked_by_user_id, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (jti) DO NOTHING`,
		token.ID, token.JTI, token.RevokedAt, string(token.Reason), token.RevokedByUserID, token.ExpiresAt,
	)
	if err != nil {
		return oops.Code("REVOCATION_INSERT_FAILED").With("jti", token.JTI).Wrap(err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, oops.Code("REVOCATION_LOOKUP_FAILED").With("jti", jti).Wrap(err)
	}
	return revoked, nil
}

func (s *RevocationStore) PruneExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, oops.Code("REVOCATION_PRUNE_FAILED").With("before", before).Wrap(err)
	}
	return tag.RowsAffected(), nil
}
