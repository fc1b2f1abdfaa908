package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const defaultTokenTTL = 24 * time.Hour

var errEmptySigningKey = errors.New("token signing key is empty")

// TokenIssuer signs and validates HS256 bearer tokens with a single
// process-wide key and consults the revocation store on every validation.
type TokenIssuer struct {
	secret      []byte
	ttl         time.Duration
	clock       ports.Clock
	jtis        ports.IDGenerator
	recordIDs   ports.IDGenerator
	revocations ports.RevocationStore
	log         zerolog.Logger
}

var _ ports.CredentialIssuer = (*TokenIssuer)(nil)

// NewTokenIssuer returns a TokenIssuer. If ttl <= 0, 24 hours is used. jtis
// generates token ids and recordIDs generates revocation record ids.
func NewTokenIssuer(
	secret []byte,
	ttl time.Duration,
	clock ports.Clock,
	jtis ports.IDGenerator,
	recordIDs ports.IDGenerator,
	revocations ports.RevocationStore,
	log zerolog.Logger,
) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errEmptySigningKey
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{
		secret:      secret,
		ttl:         ttl,
		clock:       clock,
		jtis:        jtis,
		recordIDs:   recordIDs,
		revocations: revocations,
		log:         log,
	}, nil
}

// IssueToken signs a token for user expiring TTL after now.
func (t *TokenIssuer) IssueToken(user domain.User) (domain.SignedToken, error) {
	now := t.clock.Now().Truncate(time.Second)
	exp := now.Add(t.ttl)
	jti := t.jtis.NewID()

	claims := domain.TokenClaims{
		Roles:  user.RoleNames(),
		UserID: user.ID(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return domain.SignedToken{}, fmt.Errorf("sign token: %w", err)
	}

	metrics.CredentialsIssuedTotal.WithLabelValues(string(domain.CredentialToken)).Inc()
	return domain.SignedToken{Value: signed, JTI: jti, ExpiresAt: exp}, nil
}

// ValidateToken checks signature and structure, then expiry against the
// injected clock, then revocation, and stops at the first failure.
func (t *TokenIssuer) ValidateToken(ctx context.Context, raw string) (domain.Principal, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return domain.Principal{}, err
	}

	if !t.clock.Now().Before(claims.ExpiresAt.Time) {
		return domain.Principal{}, domain.ErrTokenExpired
	}

	revoked, err := t.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("validate token: revocation lookup: %w", err)
	}
	if revoked {
		return domain.Principal{}, domain.ErrTokenRevoked
	}

	return domain.Principal{
		UserID:       claims.UserID,
		Username:     claims.Subject,
		Roles:        claims.Roles,
		CredentialID: claims.ID,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// parse verifies the signature and the presence of the claims validation
// depends on. Time checks are left to ValidateToken so they use the injected
// clock.
func (t *TokenIssuer) parse(raw string) (*domain.TokenClaims, error) {
	claims := &domain.TokenClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if claims.ID == "" || claims.Subject == "" || claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing required claims", domain.ErrTokenInvalid)
	}
	return claims, nil
}

// RevokeToken records jti as revoked. Revoking twice is a no-op.
func (t *TokenIssuer) RevokeToken(ctx context.Context, jti string, reason domain.RevocationReason, actingUserID string, expiresAt time.Time) error {
	rec := domain.RevokedToken{
		ID:              t.recordIDs.NewID(),
		JTI:             jti,
		RevokedAt:       t.clock.Now(),
		Reason:          reason,
		RevokedByUserID: actingUserID,
		ExpiresAt:       expiresAt,
	}
	if err := t.revocations.Revoke(ctx, rec); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	metrics.CredentialsInvalidatedTotal.WithLabelValues(string(domain.CredentialToken), string(reason)).Inc()
	t.log.Info().Str("jti", jti).Str("reason", string(reason)).Msg("token revoked")
	return nil
}

// ── CredentialIssuer ─────────────────────────────────────────────────────────

func (t *TokenIssuer) Kind() domain.CredentialKind { return domain.CredentialToken }

func (t *TokenIssuer) Issue(_ context.Context, user domain.User) (domain.Credential, error) {
	tok, err := t.IssueToken(user)
	if err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{Kind: domain.CredentialToken, Value: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

func (t *TokenIssuer) Verify(ctx context.Context, raw string) (domain.Principal, error) {
	return t.ValidateToken(ctx, raw)
}

func (t *TokenIssuer) Invalidate(ctx context.Context, p domain.Principal) error {
	return t.RevokeToken(ctx, p.CredentialID, domain.ReasonLogout, p.UserID, p.ExpiresAt)
}

// InvalidateForPasswordChange revokes the presented token only. Other tokens
// held by the same user stay valid until they expire.
func (t *TokenIssuer) InvalidateForPasswordChange(ctx context.Context, p domain.Principal) error {
	return t.RevokeToken(ctx, p.CredentialID, domain.ReasonPasswordChanged, p.UserID, p.ExpiresAt)
}
