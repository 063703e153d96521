// Package auth issues and verifies stateless HS256 session tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/artpar/routekit/adapters/clock"
	"github.com/artpar/routekit/adapters/random"
	"github.com/artpar/routekit/ports"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry, or
// issuer checks.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "routekit"

// claims is the signed payload.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService implements ports.TokenIssuer. Safe for concurrent use.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  ports.Clock
}

// Option configures a TokenService.
type Option func(*TokenService)

// WithClock sets the time source used for issue and expiry times.
func WithClock(c ports.Clock) Option {
	return func(s *TokenService) { s.clock = c }
}

// NewTokenService creates a token service. An empty secret is replaced by
// 32 random bytes, which invalidates tokens on restart. A zero ttl means 24h.
func NewTokenService(secret string, ttl time.Duration, opts ...Option) (*TokenService, error) {
	s := &TokenService{secret: []byte(secret), ttl: ttl, clock: clock.UTC{}}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		b, err := random.Crypto{}.Bytes(32)
		if err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
		s.secret = b
	}
	if s.ttl <= 0 {
		s.ttl = 24 * time.Hour
	}
	return s, nil
}

// Issue signs a token for the user.
func (s *TokenService) Issue(userID, email string) (string, time.Time, error) {
	now := s.clock.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token and returns its claims.
func (s *TokenService) Verify(tokenString string) (ports.Claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return ports.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return ports.Claims{
		UserID:    c.Subject,
		Email:     c.Email,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

var _ ports.TokenIssuer = (*TokenService)(nil)
