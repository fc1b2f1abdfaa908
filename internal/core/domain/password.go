package domain

import "errors"

// Hasher is the salted adaptive one-way hash used for passwords.
type Hasher interface {
	Hash(raw string) (string, error)
	// Verify reports whether raw matches hash. Implementations must compare in
	// constant time and return false for malformed hashes. An error means the
	// comparison could not run and says nothing about the password.
	Verify(raw, hash string) (bool, error)
}

var errEmptyStoredHash = errors.New("stored password hash is empty")

// PasswordHash wraps an encoded hash. It cannot be built from a raw password
// except through HashPassword, so plaintext never ends up persisted by mistake.
type PasswordHash struct {
	encoded string
}

// HashPassword hashes raw with h. Callers are expected to have validated raw
// against the password policy first.
func HashPassword(h Hasher, raw string) (PasswordHash, error) {
	encoded, err := h.Hash(raw)
	if err != nil {
		return PasswordHash{}, err
	}
	if encoded == "" {
		return PasswordHash{}, errEmptyStoredHash
	}
	return PasswordHash{encoded: encoded}, nil
}

// RestorePasswordHash rebuilds a hash read back from a credential store.
// It must not be used with user input.
func RestorePasswordHash(stored string) (PasswordHash, error) {
	if stored == "" {
		return PasswordHash{}, errEmptyStoredHash
	}
	return PasswordHash{encoded: stored}, nil
}

// Matches verifies raw against the hash.
func (p PasswordHash) Matches(h Hasher, raw string) (bool, error) {
	return h.Verify(raw, p.encoded)
}

// Encoded returns the stored representation for persistence adapters.
func (p PasswordHash) Encoded() string { return p.encoded }

// IsZero reports whether the hash is unset.
func (p PasswordHash) IsZero() bool { return p.encoded == "" }

// String redacts the hash so it does not leak through %v formatting.
func (p PasswordHash) String() string {
	if p.encoded == "" {
		return ""
	}
	return "[REDACTED]"
}
