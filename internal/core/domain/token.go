package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RevocationReason explains why a token was revoked.
type RevocationReason string

const (
	ReasonLogout          RevocationReason = "logout"
	ReasonPasswordChanged RevocationReason = "password_changed"
)

// TokenClaims are the claims carried by a signed bearer token. Subject is the
// username; ID is the jti used as revocation key.
type TokenClaims struct {
	Roles  []string `json:"roles"`
	UserID string   `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// SignedToken is a compact serialized token plus the metadata needed by the
// transport layer.
type SignedToken struct {
	Value     string
	JTI       string
	ExpiresAt time.Time
}

// RevokedToken records a token that must no longer be honoured. Records are
// append-only and may be pruned once ExpiresAt has passed.
type RevokedToken struct {
	ID              string
	JTI             string
	RevokedAt       time.Time
	Reason          RevocationReason
	RevokedByUserID string
	ExpiresAt       time.Time
}
