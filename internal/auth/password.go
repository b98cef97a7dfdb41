package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets with bcrypt. The salt is embedded in
// the hash, so Hash is non-deterministic while Verify stays deterministic.
type Hasher struct {
	cost int
}

// NewHasher builds a Hasher. A non-positive cost selects bcrypt's default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of secret.
func (h *Hasher) Hash(secret string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("auth: secret is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether secret matches hash. Comparison happens inside
// bcrypt itself, never as a string compare.
func (h *Hasher) Verify(secret, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
