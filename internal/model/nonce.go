package model

import "time"

// Nonce is a single-use challenge value tied to an identity and an intent.
// Consumption is delete-and-return at the store; a nonce can never be
// consumed twice.
type Nonce struct {
	Value     string
	UID       string
	Intent    Intent
	ExpiresAt time.Time
}

// ConsumedChallenge is the joined row a successful nonce consumption
// returns: the nonce that was deleted plus the credential it belonged to.
type ConsumedChallenge struct {
	Nonce      Nonce
	Credential Credential
}

// PlaceholderSlot is one entry of the anonymity pool: a pre-generated
// opaque value that stands in for a verifier during in-flight
// registration. A slot is either available in the pool or borrowed by
// exactly one credential, never both.
type PlaceholderSlot struct {
	Index     int
	Value     string
	Available bool
}

// KeyMapping links a proven verifier to the content-key fingerprint that
// becomes the subject of issued tokens. It decouples login identity from
// content identity.
type KeyMapping struct {
	Verifier    string
	Fingerprint string
}
