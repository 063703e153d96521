// Package ports defines the interfaces between the demo application and its
// adapters. Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"
)

// Store errors shared by every UserStore implementation.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// String generates a random string of n characters.
	String(n int) (string, error)
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plaintext string) ([]byte, error)
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// User is an account of the demo users API.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserStore persists users. Lookups of unknown users return ErrNotFound;
// creating a user with a taken email returns ErrDuplicate.
type UserStore interface {
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
	// List returns users ordered by creation time, oldest first.
	List(ctx context.Context) ([]User, error)
}

// -----------------------------------------------------------------------------
// Auth Ports
// -----------------------------------------------------------------------------

// Claims identify the holder of a session token.
type Claims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(userID, email string) (token string, expiresAt time.Time, err error)
	Verify(token string) (Claims, error)
}
