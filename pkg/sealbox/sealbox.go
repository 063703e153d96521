// Package sealbox encrypts messages between two X25519 key holders.
//
// Both sides compute the same shared secret from their private key and the
// peer's public key. A 32-byte key is derived from it with HKDF-SHA256 and
// messages are sealed with NaCl secretbox (XSalsa20-Poly1305) under a random
// 24-byte nonce.
package sealbox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/artpar/routekit/adapters/random"
	"github.com/artpar/routekit/ports"
)

const (
	// KeySize is the length of public, private, and derived keys.
	KeySize = 32
	// NonceSize is the secretbox nonce length.
	NonceSize = 24
	// Info is the HKDF info string used for key derivation.
	Info = "SecureMessenger"
)

var (
	// ErrInvalidKey is returned for keys of the wrong length or low-order
	// public keys.
	ErrInvalidKey = errors.New("invalid key")
	// ErrOpen is returned when a box fails authentication.
	ErrOpen = errors.New("cannot open sealed message")
)

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// Sealed is an encrypted message and the nonce it was sealed with.
type Sealed struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Box seals and opens messages.
type Box struct {
	random ports.Random
}

// Option configures a Box.
type Option func(*Box)

// WithRandom replaces the crypto/rand source.
func WithRandom(r ports.Random) Option {
	return func(b *Box) { b.random = r }
}

// New returns a Box backed by crypto/rand.
func New(opts ...Option) *Box {
	b := &Box{random: random.Crypto{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// GenerateKeyPair creates a new X25519 key pair.
func (b *Box) GenerateKeyPair() (KeyPair, error) {
	priv, err := b.random.Bytes(KeySize)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate private key: %w", err)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("derive public key: %w", err)
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// SharedSecret computes the X25519 shared secret. Only the first 32 bytes
// of privateKey are used.
func SharedSecret(privateKey, peerPublicKey []byte) ([]byte, error) {
	if len(privateKey) < KeySize || len(peerPublicKey) != KeySize {
		return nil, ErrInvalidKey
	}
	secret, err := curve25519.X25519(privateKey[:KeySize], peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return secret, nil
}

// DeriveKey derives the symmetric key both peers share.
func DeriveKey(privateKey, peerPublicKey []byte) (*[KeySize]byte, error) {
	secret, err := SharedSecret(privateKey, peerPublicKey)
	if err != nil {
		return nil, err
	}
	var key [KeySize]byte
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(Info)), key[:]); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &key, nil
}

// Seal encrypts message for the holder of peerPublicKey.
func (b *Box) Seal(privateKey, peerPublicKey, message []byte) (Sealed, error) {
	key, err := DeriveKey(privateKey, peerPublicKey)
	if err != nil {
		return Sealed{}, err
	}
	n, err := b.random.Bytes(NonceSize)
	if err != nil {
		return Sealed{}, fmt.Errorf("generate nonce: %w", err)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], n)

	return Sealed{
		Nonce:      nonce[:],
		Ciphertext: secretbox.Seal(nil, message, &nonce, key),
	}, nil
}

// Open decrypts a message sealed by the holder of peerPublicKey.
func Open(privateKey, peerPublicKey []byte, sealed Sealed) ([]byte, error) {
	if len(sealed.Nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", ErrOpen, NonceSize)
	}
	key, err := DeriveKey(privateKey, peerPublicKey)
	if err != nil {
		return nil, err
	}
	var nonce [NonceSize]byte
	copy(nonce[:], sealed.Nonce)

	out, ok := secretbox.Open(nil, sealed.Ciphertext, &nonce, key)
	if !ok {
		return nil, ErrOpen
	}
	return out, nil
}
