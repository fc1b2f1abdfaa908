// Package security holds the password hasher and the credential policy.
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// MaxPasswordBytes is the bcrypt input limit. Longer inputs are rejected by the
// policy rather than silently truncated.
const MaxPasswordBytes = 72

// BcryptHasher hashes passwords with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

var _ domain.Hasher = (*BcryptHasher)(nil)

// NewBcryptHasher returns a hasher for cost, or bcrypt.DefaultCost when cost
// is zero.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

// Verify compares in constant time; malformed hashes never match.
func (h *BcryptHasher) Verify(raw, hash string) (bool, error) {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil, nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }
