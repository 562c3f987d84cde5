package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher performs one-way password hashing and verification.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with bcrypt's default cost.
func NewHasher() *Hasher {
	return &Hasher{cost: bcrypt.DefaultCost}
}

// Hash returns a randomized bcrypt hash of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether plaintext matches hash. A malformed hash compares
// false rather than erroring; bcrypt's comparison is constant-time.
func (h *Hasher) Compare(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
