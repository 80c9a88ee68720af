package token

import (
	"crypto/rand"
	"fmt"
)

// Scope is the capability embedded in a token.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeReset Scope = "reset"
)

// Scopes lists every valid scope.
var Scopes = []Scope{ScopeRead, ScopeWrite, ScopeReset}

const secretSize = 32

// SigningKeyRing holds one signing secret per scope. Secrets are
// generated fresh at process start and never persisted, so a restart
// invalidates every outstanding token. That blast-radius limit is
// intentional; do not add persistence.
type SigningKeyRing struct {
	secrets map[Scope][]byte
}

// NewSigningKeyRing generates a ring of fresh random secrets.
func NewSigningKeyRing() (*SigningKeyRing, error) {
	ring := &SigningKeyRing{secrets: make(map[Scope][]byte, len(Scopes))}
	for _, scope := range Scopes {
		secret := make([]byte, secretSize)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
		ring.secrets[scope] = secret
	}
	return ring, nil
}

// Secret returns the signing secret for scope.
func (r *SigningKeyRing) Secret(scope Scope) ([]byte, error) {
	secret, ok := r.secrets[scope]
	if !ok {
		return nil, fmt.Errorf("no signing secret for scope %q", scope)
	}
	return secret, nil
}
