package model

import (
	"context"
	"time"
)

// AuthStore persists credentials, the nonce ledger and the placeholder
// pool. Multi-entity operations are atomic at the store: a torn write on
// the register path would leave an unborrowable ghost slot.
type AuthStore interface {
	// GetCredential returns the credential for uid or ErrNotFound.
	GetCredential(ctx context.Context, uid string) (Credential, error)

	// CreateFreshCredential runs the register path in one transaction:
	// borrow a placeholder slot starting the scan at startIndex (wrapping,
	// skipping slots locked by concurrent borrowers), insert a credential
	// with the placeholder as its verifier, and insert the register nonce.
	// Returns ErrPoolExhausted when no slot is free.
	CreateFreshCredential(ctx context.Context, cred Credential, nonce Nonce, startIndex int) (Credential, error)

	// CreateNonce records a nonce for an existing credential.
	CreateNonce(ctx context.Context, nonce Nonce) error

	// ConsumeNonce atomically deletes the nonce matching value with an
	// intent in intents and expiry after now, returning the joined
	// credential. Zero matches is ErrNotFound; more than one is
	// ErrInvariantViolation.
	ConsumeNonce(ctx context.Context, value string, intents []Intent, now time.Time) (ConsumedChallenge, error)

	// FinalizeCredential commits a proven registration in one transaction:
	// release the credential's borrowed placeholder back to the pool, swap
	// in the real verifier, and insert the verifier-to-fingerprint mapping.
	FinalizeCredential(ctx context.Context, uid, verifier, fingerprint string) error

	// RotateVerifier replaces the verifier of the credential mapped to
	// fingerprint and moves its key mapping to the new value, in one
	// transaction. Fingerprint-keyed because reset tokens carry the
	// content identity, never the login identity.
	RotateVerifier(ctx context.Context, fingerprint, verifier string) error

	// RotateFingerprint moves a key mapping from one content-key
	// fingerprint to another.
	RotateFingerprint(ctx context.Context, oldFingerprint, newFingerprint string) error

	// GetKeyMapping returns the mapping for verifier or ErrNotFound.
	GetKeyMapping(ctx context.Context, verifier string) (KeyMapping, error)

	// SweepExpired deletes nonces expired before now within one
	// transaction, reclaiming the credential and placeholder of any
	// abandoned registration. Returns the number of nonces reaped.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	// SeedPlaceholders fills the pool with the given values, all
	// available, replacing any previous pool.
	SeedPlaceholders(ctx context.Context, values []string) error

	// ClearPlaceholders empties the pool.
	ClearPlaceholders(ctx context.Context) error

	// AvailablePlaceholders reports how many slots are free.
	AvailablePlaceholders(ctx context.Context) (int, error)
}

// Mailer delivers a reset token to an address. Delivery is an external
// collaborator; implementations must not log the token at info level.
type Mailer interface {
	SendResetToken(ctx context.Context, to, token string) error
}
