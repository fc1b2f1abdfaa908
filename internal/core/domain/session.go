package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SessionHandleBytes is the entropy of a session handle (64 hex chars).
const SessionHandleBytes = 32

// SessionHandle is the opaque value bound to the client cookie. Only its
// digest is persisted.
type SessionHandle string

// NewSessionHandle draws a handle from crypto/rand.
func NewSessionHandle() (SessionHandle, error) {
	b := make([]byte, SessionHandleBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session handle: %w", err)
	}
	return SessionHandle(hex.EncodeToString(b)), nil
}

// Digest returns the SHA-256 of the handle used as the storage key.
func (h SessionHandle) Digest() string {
	sum := sha256.Sum256([]byte(h))
	return hex.EncodeToString(sum[:])
}

// Session is the server-held authentication state for one login.
type Session struct {
	// ID is the digest of the handle, never the handle itself.
	ID          string
	UserID      string
	Principal   string
	Authorities []string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ExpiredAt reports whether the session is expired at t.
func (s Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
