package model

import "errors"

var (
	// ErrNotFound is the internal "no such row" signal. It never reaches
	// the wire directly; handlers erase it into ErrNotFoundOrExists.
	ErrNotFound = errors.New("not found")

	// ErrNotFoundOrExists deliberately conflates "identity absent" (for
	// login-class intents) with "identity taken" (for register) so the
	// challenge endpoint cannot be used to enumerate accounts.
	ErrNotFoundOrExists = errors.New("identity not found or already registered")

	// ErrUnauthenticated covers bad proofs and expired or already-consumed
	// nonces. It maps to the same wire code as ErrNotFoundOrExists.
	ErrUnauthenticated = errors.New("authentication failed")

	// ErrPoolExhausted means no placeholder slot is free. Operator-visible,
	// never silently retried.
	ErrPoolExhausted = errors.New("no available placeholder slots")

	// ErrInvariantViolation means a uniqueness-guaranteed query matched
	// more than one row. Always a bug.
	ErrInvariantViolation = errors.New("store invariant violated")

	// ErrTokenExpired means a bearer token is past its TTL.
	ErrTokenExpired = errors.New("token expired")
)
