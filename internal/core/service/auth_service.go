package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

var tracer = otel.Tracer("identity-service/service")

// dummyPassword is hashed once at construction. Lookups for unknown users
// verify against it so both branches pay one hash comparison.
const dummyPassword = "identity-service-dummy-password"

// AuthService checks passwords and manages the stored hash. It never issues
// credentials.
type AuthService struct {
	store     ports.CredentialStore
	factory   *UserFactory
	policy    ports.CredentialPolicy
	hasher    domain.Hasher
	clock     ports.Clock
	dummyHash domain.PasswordHash
	log       zerolog.Logger
}

// NewAuthService hashes the dummy password with hasher and fails if that does.
func NewAuthService(
	store ports.CredentialStore,
	factory *UserFactory,
	policy ports.CredentialPolicy,
	hasher domain.Hasher,
	clock ports.Clock,
	log zerolog.Logger,
) (*AuthService, error) {
	dummy, err := domain.HashPassword(hasher, dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("new auth service: hash dummy password: %w", err)
	}
	return &AuthService{
		store:     store,
		factory:   factory,
		policy:    policy,
		hasher:    hasher,
		clock:     clock,
		dummyHash: dummy,
		log:       log,
	}, nil
}

// Signup builds a user through the factory and inserts it.
func (s *AuthService) Signup(ctx context.Context, username, rawPassword, email string) (domain.SignupResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Signup")
	defer span.End()

	created, err := s.factory.CreateUser(username, rawPassword, email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("signup: %w", err)
	}

	var user domain.User
	switch r := created.(type) {
	case domain.UserInvalid:
		metrics.SignupsTotal.WithLabelValues("invalid_input").Inc()
		s.log.Debug().Str("field", r.Field).Msg("signup rejected by policy")
		return domain.SignupInvalid{Field: r.Field, Reason: r.Reason}, nil
	case domain.UserCreated:
		user = r.User
	}

	inserted, err := s.store.Insert(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("signup: insert: %w", err)
	}
	switch inserted.(type) {
	case domain.AlreadyExists:
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		s.log.Info().Str("username", username).Msg("signup conflict")
		return domain.SignupConflict{}, nil
	case domain.Inserted:
	}

	metrics.SignupsTotal.WithLabelValues("created").Inc()
	s.log.Info().Str("username", user.Username()).Str("user_id", user.ID()).Msg("user created")
	return domain.SignupCreated{User: user}, nil
}

// Authenticate checks a username/password pair. Unknown users still pay one
// hash comparison. A disabled account is only reported after the password has
// matched.
func (s *AuthService) Authenticate(ctx context.Context, username, rawPassword string) (domain.AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	user, err := s.store.FindByUsername(ctx, username)
	if errors.Is(err, domain.ErrUserNotFound) {
		if _, err := s.dummyHash.Matches(s.hasher, rawPassword); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("authenticate: verify password: %w", err)
		}
		return s.authOutcome(span, username, "user_not_found", domain.AuthUserNotFound{}), nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	ok, err := user.PasswordHash().Matches(s.hasher, rawPassword)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("authenticate: verify password: %w", err)
	}
	if !ok {
		return s.authOutcome(span, username, "wrong_password", domain.AuthWrongPassword{}), nil
	}
	if !user.Enabled() {
		return s.authOutcome(span, username, "disabled", domain.AuthDisabled{}), nil
	}
	return s.authOutcome(span, username, "success", domain.AuthSucceeded{User: user}), nil
}

func (s *AuthService) authOutcome(span trace.Span, username, result string, r domain.AuthResult) domain.AuthResult {
	span.SetAttributes(attribute.String("auth.result", result))
	metrics.AuthAttemptsTotal.WithLabelValues(result).Inc()
	ev := s.log.Info()
	if result != "success" {
		ev = s.log.Warn()
	}
	ev.Str("username", username).Str("result", result).Msg("authentication attempt")
	return r
}

// ChangePassword revalidates and stores a new hash for user. It reports false
// when the new password fails the policy. Outstanding credentials are left to
// the caller.
func (s *AuthService) ChangePassword(ctx context.Context, user domain.User, newRawPassword string) (domain.User, bool, error) {
	ctx, span := tracer.Start(ctx, "AuthService.ChangePassword")
	defer span.End()

	if err := s.policy.ValidatePassword(newRawPassword); err != nil {
		return domain.User{}, false, nil
	}

	hash, err := domain.HashPassword(s.hasher, newRawPassword)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, false, fmt.Errorf("change password: hash: %w", err)
	}

	now := s.clock.Now()
	if err := s.store.UpdatePassword(ctx, user.ID(), hash, now); err != nil {
		span.RecordError(err)
		return domain.User{}, false, fmt.Errorf("change password: update: %w", err)
	}

	s.log.Info().Str("username", user.Username()).Str("user_id", user.ID()).Msg("password changed")
	return user.WithPasswordHash(hash, now), true, nil
}
