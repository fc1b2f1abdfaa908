package service

import (
	"fmt"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// Field names reported by domain.UserInvalid.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldEmail    = "email"
)

// UserFactory is the only place new accounts are built. It validates input,
// hashes the password and assigns the default role without touching a store.
type UserFactory struct {
	policy      ports.CredentialPolicy
	hasher      domain.Hasher
	clock       ports.Clock
	ids         ports.IDGenerator
	defaultRole domain.Role
}

func NewUserFactory(policy ports.CredentialPolicy, hasher domain.Hasher, clock ports.Clock, ids ports.IDGenerator) *UserFactory {
	return &UserFactory{
		policy:      policy,
		hasher:      hasher,
		clock:       clock,
		ids:         ids,
		defaultRole: domain.DefaultRole,
	}
}

// CreateUser validates username, password and email in that order and returns
// the first failure as domain.UserInvalid. The error return is reserved for
// hashing failures.
func (f *UserFactory) CreateUser(username, rawPassword, email string) (domain.CreateUserResult, error) {
	if err := f.policy.ValidateUsername(username); err != nil {
		return domain.UserInvalid{Field: FieldUsername, Reason: err.Error()}, nil
	}
	if err := f.policy.ValidatePassword(rawPassword); err != nil {
		return domain.UserInvalid{Field: FieldPassword, Reason: err.Error()}, nil
	}
	if err := f.policy.ValidateEmail(email); err != nil {
		return domain.UserInvalid{Field: FieldEmail, Reason: err.Error()}, nil
	}

	hash, err := domain.HashPassword(f.hasher, rawPassword)
	if err != nil {
		return nil, fmt.Errorf("create user: hash password: %w", err)
	}

	now := f.clock.Now()
	user, err := domain.NewUser(domain.UserParams{
		ID:           f.ids.NewID(),
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
		Roles:        []domain.Role{f.defaultRole},
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return domain.UserCreated{User: user}, nil
}
