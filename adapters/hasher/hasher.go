// Package hasher provides password hashing implementations.
package hasher

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/artpar/routekit/ports"
)

// Bcrypt hashes with bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. Out-of-range costs use bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Cost returns the work factor in use.
func (h *Bcrypt) Cost() int { return h.cost }

// Hash returns the bcrypt hash of plaintext. Passwords longer than 72 bytes
// are rejected with bcrypt.ErrPasswordTooLong.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

// Compare reports whether plaintext matches hash.
func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

// Plain stores passwords unhashed. Tests only.
type Plain struct{}

// Hash returns plaintext as bytes.
func (Plain) Hash(plaintext string) ([]byte, error) { return []byte(plaintext), nil }

// Compare checks equality.
func (Plain) Compare(hash []byte, plaintext string) bool { return string(hash) == plaintext }

var (
	_ ports.Hasher = (*Bcrypt)(nil)
	_ ports.Hasher = Plain{}
)
