package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Role names seeded by the initial migration.
const (
	RoleRead  = "READ"
	RoleWrite = "WRITE"
	RoleAdmin = "ADMIN"
)

// authorityPrefix is prepended to role names when deriving session authorities.
const authorityPrefix = "ROLE_"

// Role is reference data linked to users through the user_roles association.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultRole is assigned to every account at creation. Its ID matches the row
// seeded by the roles migration.
var DefaultRole = Role{ID: 1, Name: RoleRead}

var (
	errEmptyUserID       = errors.New("user id is required")
	errEmptyUsername     = errors.New("username is required")
	errEmptyPasswordHash = errors.New("password hash is required")
	errNoRoles           = errors.New("user must hold at least one role")
)

// UserParams carries the fields needed to construct a User. It is used both by
// the signup factory and by stores restoring persisted rows.
type UserParams struct {
	ID           string
	Username     string
	PasswordHash PasswordHash
	Email        string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Roles        []Role
}

// User models an account. It is immutable: changes produce a new value.
type User struct {
	id           string
	username     string
	passwordHash PasswordHash
	email        string
	enabled      bool
	createdAt    time.Time
	updatedAt    time.Time
	roles        []Role
}

// NewUser validates the structural invariants of an account and returns it.
// Policy checks (username format, password strength) are not done here.
func NewUser(p UserParams) (User, error) {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return User{}, errEmptyUserID
	case strings.TrimSpace(p.Username) == "":
		return User{}, errEmptyUsername
	case p.PasswordHash.IsZero():
		return User{}, errEmptyPasswordHash
	case len(p.Roles) == 0:
		return User{}, errNoRoles
	}

	return User{
		id:           p.ID,
		username:     p.Username,
		passwordHash: p.PasswordHash,
		email:        p.Email,
		enabled:      p.Enabled,
		createdAt:    p.CreatedAt,
		updatedAt:    p.UpdatedAt,
		roles:        slices.Clone(p.Roles),
	}, nil
}

func (u User) ID() string                 { return u.id }
func (u User) Username() string           { return u.username }
func (u User) PasswordHash() PasswordHash { return u.passwordHash }
func (u User) Email() string              { return u.email }
func (u User) Enabled() bool              { return u.enabled }
func (u User) CreatedAt() time.Time       { return u.createdAt }
func (u User) UpdatedAt() time.Time       { return u.updatedAt }

// Roles returns a copy of the user's roles.
func (u User) Roles() []Role { return slices.Clone(u.roles) }

// IsZero reports whether u was never constructed.
func (u User) IsZero() bool { return u.id == "" }

// RoleNames returns the role names in the order they were assigned.
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.roles))
	for _, r := range u.roles {
		names = append(names, r.Name)
	}
	return names
}

// WithPasswordHash returns a copy of u carrying the new hash and updatedAt.
func (u User) WithPasswordHash(hash PasswordHash, at time.Time) User {
	next := u
	next.passwordHash = hash
	next.updatedAt = at
	next.roles = slices.Clone(u.roles)
	return next
}

// Authorities maps role names to the ROLE_ prefixed form stored with sessions.
func Authorities(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, authorityPrefix+r)
	}
	return out
}

// RolesFromAuthorities reverses Authorities, skipping values without the prefix.
func RolesFromAuthorities(authorities []string) []string {
	out := make([]string, 0, len(authorities))
	for _, a := range authorities {
		if name, ok := strings.CutPrefix(a, authorityPrefix); ok {
			out = append(out, name)
		}
	}
	return out
}
