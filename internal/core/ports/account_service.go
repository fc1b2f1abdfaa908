package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// SignupInput carries the fields accepted by the signup endpoint.
type SignupInput struct {
	Username string
	Password string
	Email    string
}

// ChangePasswordInput carries the verified principal and both passwords.
type ChangePasswordInput struct {
	Principal   domain.Principal
	OldPassword string
	NewPassword string
}

// CredentialIssuer mints and checks proof of authentication. The session and
// token strategies both satisfy it.
type CredentialIssuer interface {
	Kind() domain.CredentialKind
	Issue(ctx context.Context, user domain.User) (domain.Credential, error)
	Verify(ctx context.Context, raw string) (domain.Principal, error)
	// Invalidate ends the credential the principal was verified from (logout).
	Invalidate(ctx context.Context, p domain.Principal) error
	// InvalidateForPasswordChange ends whatever must not survive a password
	// change for the principal.
	InvalidateForPasswordChange(ctx context.Context, p domain.Principal) error
}

// AccountService exposes the logical operations used by the transport layer.
type AccountService interface {
	Signup(ctx context.Context, in SignupInput) (domain.SignupResult, error)
	Login(ctx context.Context, username, password string) (domain.LoginResult, error)
	Logout(ctx context.Context, credential string) error
	ChangePassword(ctx context.Context, in ChangePasswordInput) (domain.ChangePasswordResult, error)
	Verify(ctx context.Context, credential string) (domain.Principal, error)
	CredentialKind() domain.CredentialKind
}
