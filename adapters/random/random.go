// Package random provides ports.Random implementations.
package random

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/artpar/routekit/ports"
)

// Crypto reads from crypto/rand.
type Crypto struct{}

// Bytes returns n random bytes.
func (Crypto) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// String returns n random hex characters.
func (c Crypto) String(n int) (string, error) {
	b, err := c.Bytes((n + 1) / 2)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:n], nil
}

// Fixed repeats one byte, for deterministic tests.
type Fixed byte

// Bytes returns n copies of f.
func (f Fixed) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(f)
	}
	return b, nil
}

// String returns n hex characters of f.
func (f Fixed) String(n int) (string, error) {
	b, _ := f.Bytes((n + 1) / 2)
	return hex.EncodeToString(b)[:n], nil
}

var (
	_ ports.Random = Crypto{}
	_ ports.Random = Fixed(0)
)
