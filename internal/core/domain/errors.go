package domain

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is the only login failure surfaced to clients.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthenticated is what every token or session failure collapses to
	// at the transport boundary.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// IsCredentialRejection reports whether err is one of the recoverable
// token/session failures rather than an infrastructure error.
func IsCredentialRejection(err error) bool {
	return errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenRevoked) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrUnauthenticated)
}
