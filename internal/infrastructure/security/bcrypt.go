package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/natours-auth/internal/domain"
)

// DefaultCost is the work factor used when none is configured.
const DefaultCost = 12

type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(b), nil
}

// Matches reports whether password hashes to hash. Malformed hashes never match.
func (h *BcryptHasher) Matches(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
