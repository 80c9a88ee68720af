package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/voidvault/voidvault-server/internal/model"
)

// Claims carries the content-key fingerprint as subject plus the token's
// scope. Login identity never appears in a token.
type Claims struct {
	jwt.RegisteredClaims
	Scope Scope `json:"scope"`
}

// Minter signs and validates scoped bearer tokens against a key ring.
// Validation needs no store round trip: signature and expiry only.
type Minter struct {
	ring *SigningKeyRing
	ttls map[Scope]time.Duration
	now  func() time.Time
}

// NewMinter creates a Minter over ring with a TTL per scope.
func NewMinter(ring *SigningKeyRing, ttls map[Scope]time.Duration) *Minter {
	return &Minter{ring: ring, ttls: ttls, now: time.Now}
}

// Mint issues a token for the given fingerprint and scope, signed with
// the scope's process-lifetime secret.
func (m *Minter) Mint(fingerprint string, scope Scope) (string, time.Time, error) {
	secret, err := m.ring.Secret(scope)
	if err != nil {
		return "", time.Time{}, err
	}
	ttl, ok := m.ttls[scope]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no ttl configured for scope %q", scope)
	}

	now := m.now()
	expiresAt := now.Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fingerprint,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Scope: scope,
	})

	signed, err := t.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s token: %w", scope, err)
	}
	return signed, expiresAt, nil
}

// Validate checks a bearer token against the required scope and returns
// the embedded fingerprint. Expiry maps to model.ErrTokenExpired; every
// other failure, including a scope mismatch, is model.ErrUnauthenticated.
func (m *Minter) Validate(tokenString string, required Scope) (string, error) {
	secret, err := m.ring.Secret(required)
	if err != nil {
		return "", err
	}

	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.ErrTokenExpired
		}
		return "", model.ErrUnauthenticated
	}
	if !t.Valid || claims.Scope != required || claims.Subject == "" {
		return "", model.ErrUnauthenticated
	}
	return claims.Subject, nil
}
