package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// Grant is a minted capability: a signed token plus its scope and expiry.
type Grant struct {
	Token     string
	Scope     token.Scope
	ExpiresAt time.Time
}

// Proof validates possession proofs against stored verifiers and mints
// scoped tokens. Nonce consumption happens before the MAC check, so a
// failed proof still burns the nonce.
type Proof struct {
	store  model.AuthStore
	minter *token.Minter
	logger *logger.Logger

	now func() time.Time
}

func NewProof(store model.AuthStore, minter *token.Minter, logger *logger.Logger) *Proof {
	return &Proof{store: store, minter: minter, logger: logger, now: time.Now}
}

// Verify consumes the nonce, checks the keyed-MAC proof against the
// stored verifier and mints a token scoped by the nonce's intent. Every
// rejection is model.ErrUnauthenticated; nothing distinguishes a missing
// nonce from a bad tag on the wire.
func (s *Proof) Verify(ctx context.Context, nonceValue, proof string) (Grant, error) {
	consumed, err := s.store.ConsumeNonce(ctx, nonceValue, model.LoginClassIntents, s.now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Grant{}, model.ErrUnauthenticated
		}
		if errors.Is(err, model.ErrInvariantViolation) {
			s.logger.Error("Proof service: nonce consumption matched multiple rows", "nonce", nonceValue)
			return Grant{}, model.ErrInvariantViolation
		}
		return Grant{}, fmt.Errorf("failed to consume nonce: %w", err)
	}

	verifier, err := vaultcrypt.Encoding.DecodeString(consumed.Credential.Verifier)
	if err != nil {
		return Grant{}, fmt.Errorf("failed to decode stored verifier: %w", err)
	}
	nonceBytes, err := vaultcrypt.Encoding.DecodeString(nonceValue)
	if err != nil {
		return Grant{}, model.ErrUnauthenticated
	}
	tag, err := vaultcrypt.Encoding.DecodeString(proof)
	if err != nil {
		return Grant{}, model.ErrUnauthenticated
	}

	if !vaultcrypt.VerifyProof(verifier, nonceBytes, tag) {
		s.logger.Info("Proof service: proof rejected", "uid", consumed.Credential.UID)
		return Grant{}, model.ErrUnauthenticated
	}

	mapping, err := s.store.GetKeyMapping(ctx, consumed.Credential.Verifier)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// A correct proof against a verifier with no mapping should be
			// impossible: placeholders are unguessable and finalize inserts
			// the mapping atomically with the verifier swap.
			s.logger.Error("Proof service: proven verifier has no key mapping", "uid", consumed.Credential.UID)
			return Grant{}, model.ErrUnauthenticated
		}
		return Grant{}, fmt.Errorf("failed to get key mapping: %w", err)
	}

	scope := scopeForIntent(consumed.Nonce.Intent)
	signed, expiresAt, err := s.minter.Mint(mapping.Fingerprint, scope)
	if err != nil {
		return Grant{}, fmt.Errorf("failed to mint %s token: %w", scope, err)
	}

	s.logger.Info("Proof service: token minted", "uid", consumed.Credential.UID, "scope", string(scope))
	return Grant{Token: signed, Scope: scope, ExpiresAt: expiresAt}, nil
}

// scopeForIntent maps a consumed nonce intent to the capability it
// grants. Login proves identity and yields read-only access; write and
// reset elevate.
func scopeForIntent(intent model.Intent) token.Scope {
	switch intent {
	case model.IntentWrite:
		return token.ScopeWrite
	case model.IntentReset:
		return token.ScopeReset
	default:
		return token.ScopeRead
	}
}
