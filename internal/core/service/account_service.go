package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

// accountService composes authentication and credential issuance into the
// operations exposed over HTTP.
type accountService struct {
	auth   *AuthService
	issuer ports.CredentialIssuer
	policy ports.CredentialPolicy
	log    zerolog.Logger
}

// NewAccountService returns an AccountService implementation.
func NewAccountService(auth *AuthService, issuer ports.CredentialIssuer, policy ports.CredentialPolicy, log zerolog.Logger) ports.AccountService {
	return &accountService{auth: auth, issuer: issuer, policy: policy, log: log}
}

func (s *accountService) CredentialKind() domain.CredentialKind { return s.issuer.Kind() }

func (s *accountService) Signup(ctx context.Context, in ports.SignupInput) (domain.SignupResult, error) {
	return s.auth.Signup(ctx, in.Username, in.Password, in.Email)
}

// Login collapses every authentication failure into LoginRejected.
func (s *accountService) Login(ctx context.Context, username, password string) (domain.LoginResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Login")
	defer span.End()

	res, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, isOK := res.(domain.AuthSucceeded)
	if !isOK {
		return domain.LoginRejected{}, nil
	}

	cred, err := s.issuer.Issue(ctx, ok.User)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("login: issue credential: %w", err)
	}
	span.SetAttributes(attribute.String("credential.kind", string(cred.Kind)))
	return domain.LoginSucceeded{User: ok.User, Credential: cred}, nil
}

// Logout invalidates the presented credential. Missing, malformed, expired or
// already invalidated credentials succeed silently.
func (s *accountService) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	p, err := s.issuer.Verify(ctx, credential)
	if err != nil {
		if domain.IsCredentialRejection(err) {
			return nil
		}
		return fmt.Errorf("logout: %w", err)
	}
	if err := s.issuer.Invalidate(ctx, p); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Str("username", p.Username).Msg("logged out")
	return nil
}

// ChangePassword re-authenticates with the old password, stores the new hash
// and ends the credentials the issuer ties to the change. Once the hash is
// stored the change is reported as done even if invalidation fails.
func (s *accountService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) (domain.ChangePasswordResult, error) {
	ctx, span := tracer.Start(ctx, "AccountService.ChangePassword")
	defer span.End()

	res, err := s.auth.Authenticate(ctx, in.Principal.Username, in.OldPassword)
	if err != nil {
		return nil, fmt.Errorf("change password: %w", err)
	}
	current, isOK := res.(domain.AuthSucceeded)
	if !isOK {
		metrics.PasswordChangesTotal.WithLabelValues("old_password_rejected").Inc()
		return domain.OldPasswordRejected{}, nil
	}

	updated, ok, err := s.auth.ChangePassword(ctx, current.User, in.NewPassword)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.PasswordChangesTotal.WithLabelValues("new_password_rejected").Inc()
		return domain.NewPasswordRejected{Reason: s.rejectionReason(in.NewPassword)}, nil
	}

	if err := s.issuer.InvalidateForPasswordChange(ctx, in.Principal); err != nil {
		span.RecordError(err)
		s.log.Error().Err(err).Str("username", in.Principal.Username).Msg("password changed but credentials were not invalidated")
		metrics.PasswordChangesTotal.WithLabelValues("changed_credentials_retained").Inc()
		return domain.PasswordChanged{User: updated, CredentialsRetained: true}, nil
	}

	metrics.PasswordChangesTotal.WithLabelValues("changed").Inc()
	return domain.PasswordChanged{User: updated}, nil
}

func (s *accountService) rejectionReason(password string) string {
	if err := s.policy.ValidatePassword(password); err != nil {
		return err.Error()
	}
	return "password rejected"
}

// Verify resolves a raw credential to a principal and records the outcome.
func (s *accountService) Verify(ctx context.Context, credential string) (domain.Principal, error) {
	strategy := string(s.issuer.Kind())
	if credential == "" {
		metrics.CredentialChecksTotal.WithLabelValues(strategy, "missing").Inc()
		return domain.Principal{}, domain.ErrUnauthenticated
	}

	p, err := s.issuer.Verify(ctx, credential)
	metrics.CredentialChecksTotal.WithLabelValues(strategy, checkResult(err)).Inc()
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

func checkResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrTokenInvalid):
		return "invalid"
	case errors.Is(err, domain.ErrTokenExpired), errors.Is(err, domain.ErrSessionExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	default:
		return "error"
	}
}
