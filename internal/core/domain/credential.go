package domain

import (
	"slices"
	"time"
)

// CredentialKind tells which issuance strategy produced a credential.
type CredentialKind string

const (
	CredentialSession CredentialKind = "session"
	CredentialToken   CredentialKind = "token"
)

// Credential is the client-visible proof of authentication.
type Credential struct {
	Kind      CredentialKind
	Value     string
	ExpiresAt time.Time
}

// Principal is the authenticated identity attached to a request. It is passed
// explicitly instead of living in a request-scoped global.
type Principal struct {
	UserID   string   `json:"user_id,omitempty"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	// CredentialID is the session digest or the token jti.
	CredentialID string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HasRole reports whether the principal carries the role name.
func (p Principal) HasRole(name string) bool {
	return slices.Contains(p.Roles, name)
}

// PrincipalFor builds the principal for a freshly authenticated user.
func PrincipalFor(u User) Principal {
	return Principal{
		UserID:   u.ID(),
		Username: u.Username(),
		Roles:    u.RoleNames(),
	}
}
