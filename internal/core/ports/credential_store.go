package ports

import (
	"context"
	"time"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// CredentialStore is the system of record for users and their roles.
type CredentialStore interface {
	// FindByUsername returns the user with its full role set, or
	// domain.ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (domain.User, error)

	// Insert writes the user row and every user-role link atomically.
	// domain.AlreadyExists is returned only for a uniqueness violation; any
	// other failure is returned as an error.
	Insert(ctx context.Context, user domain.User) (domain.InsertResult, error)

	// UpdatePassword replaces the hash and sets updated_at, or returns
	// domain.ErrUserNotFound.
	UpdatePassword(ctx context.Context, id string, hash domain.PasswordHash, at time.Time) error
}

// CredentialPolicy validates user supplied fields before any hashing or I/O.
type CredentialPolicy interface {
	ValidateUsername(username string) error
	ValidatePassword(password string) error
	ValidateEmail(email string) error
}

// Clock is the injected time source.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for users and tokens.
type IDGenerator interface {
	NewID() string
}
