package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// CredentialStore persists users in the users, roles and user_roles tables.
type CredentialStore struct {
	pool poolIface
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(pool poolIface) *CredentialStore {
	return &CredentialStore{pool: pool}
}

const findByUsernameSQL = `SELECT u.id::text, u.username, u.password_hash, u.email, u.enabled,
       u.created_at, u.updated_at, r.id, r.name, r.created_at
FROM users u
JOIN user_roles ur ON ur.user_id = u.id
JOIN roles r ON r.id = ur.role_id
WHERE u.username = $1
ORDER BY r.id`

// FindByUsername loads the user and its roles in one query. A user row
// without role links is unreachable by construction and reads as not found.
func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	rows, err := s.pool.Query(ctx, findByUsernameSQL, username)
	if err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	defer rows.Close()

	var (
		p    domain.UserParams
		hash string
	)
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&p.ID, &p.Username, &hash, &p.Email, &p.Enabled,
			&p.CreatedAt, &p.UpdatedAt, &role.ID, &role.Name, &role.CreatedAt); err != nil {
			return domain.User{}, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("username", username).Wrap(err)
		}
		p.Roles = append(p.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_LOOKUP_FAILED").With("username", username).Wrap(err)
	}
	if len(p.Roles) == 0 {
		return domain.User{}, domain.ErrUserNotFound
	}

	return restoreUser(p, hash)
}

func restoreUser(p domain.UserParams, hash string) (domain.User, error) {
	ph, err := domain.RestorePasswordHash(hash)
	if err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_CORRUPT").With("user_id", p.ID).Wrap(err)
	}
	p.PasswordHash = ph
	u, err := domain.NewUser(p)
	if err != nil {
		return domain.User{}, oops.Code("CREDENTIAL_CORRUPT").With("user_id", p.ID).Wrap(err)
	}
	return u, nil
}

// Insert writes the user row and its role links in one transaction.
func (s *CredentialStore) Insert(ctx context.Context, user domain.User) (domain.InsertResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, oops.Code("CREDENTIAL_INSERT_FAILED").With("operation", "begin").Wrap(err)
	}

	fail := func(op string, err error) (domain.InsertResult, error) {
		_ = tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return domain.AlreadyExists{}, nil
		}
		return nil, oops.Code("CREDENTIAL_INSERT_FAILED").
			With("operation", op).
			With("user_id", user.ID()).
			Wrap(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, username, password_hash, email, enabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID(), user.Username(), user.PasswordHash().Encoded(), user.Email(),
		user.Enabled(), user.CreatedAt(), user.UpdatedAt(),
	)
	if err != nil {
		return fail("insert user", err)
	}

	for _, role := range user.Roles() {
		_, err = tx.Exec(ctx,
			`INSERT INTO user_roles (user_id, role_id, created_at) VALUES ($1, $2, $3)`,
			user.ID(), role.ID, user.CreatedAt(),
		)
		if err != nil {
			return fail("insert user role", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fail("commit", err)
	}
	return domain.Inserted{}, nil
}

func (s *CredentialStore) UpdatePassword(ctx context.Context, id string, hash domain.PasswordHash, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash.Encoded(), at,
	)
	if err != nil {
		return oops.Code("CREDENTIAL_UPDATE_FAILED").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
