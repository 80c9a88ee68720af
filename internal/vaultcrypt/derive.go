// Package vaultcrypt implements the client side of the vault protocol:
// password key derivation, proof MACs and envelope encryption. Nothing in
// this package ever sends a raw key or password anywhere; the server only
// ever sees derived verifiers and MAC tags.
package vaultcrypt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
)

const (
	// IdentitySize is the digest length of a uid in bytes.
	IdentitySize = 16
	// ProofMaterialSize is the first-stage derived secret length.
	ProofMaterialSize = 24
	// VerifierSize is the second-stage derived verifier length.
	VerifierSize = 32
)

// Encoding is the wire encoding for all derived values, nonces and blobs.
var Encoding = base64.RawURLEncoding

// Params are the argon2id work factors. They are advertised by the server
// so clients derive identical material across devices.
type Params struct {
	Time   uint32
	MemKiB uint32
	Par    uint8
}

// DefaultParams matches the interactive profile the protocol ships with.
var DefaultParams = Params{Time: 5, MemKiB: 64 * 1024, Par: 1}

// DeriveIdentity turns a username into the fixed-length uid digest the
// server stores. key is an optional pepper; nil produces an unkeyed
// digest. The raw username is never transmitted.
func DeriveIdentity(username string, key []byte) (string, error) {
	h, err := blake2b.New(IdentitySize, key)
	if err != nil {
		return "", fmt.Errorf("failed to init identity digest: %w", err)
	}
	h.Write([]byte(username))
	return Encoding.EncodeToString(h.Sum(nil)), nil
}

// DeriveProofMaterial is the first, memory-hard stage: a slow hash of the
// password under the identity-derived salt. The result stays on the
// client.
func DeriveProofMaterial(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemKiB, p.Par, ProofMaterialSize)
}

// DeriveVerifier is the second stage: a slow hash of the proof material
// under the server-issued salt. This value is what registration stores as
// the credential verifier; the password is not recoverable from it.
func DeriveVerifier(material, serverSalt []byte, p Params) []byte {
	return argon2.IDKey(material, serverSalt, p.Time, p.MemKiB, p.Par, VerifierSize)
}

// ComputeProof MACs the challenge nonce with the derived verifier as key.
// The server recomputes the same tag from its stored verifier, so the key
// itself is never exchanged.
func ComputeProof(verifier, nonce []byte) []byte {
	mac := hmac.New(sha256.New, verifier)
	mac.Write(nonce)
	return mac.Sum(nil)
}

// VerifyProof checks a submitted tag against the stored verifier using
// HMAC's constant-time comparison.
func VerifyProof(verifier, nonce, proof []byte) bool {
	return hmac.Equal(proof, ComputeProof(verifier, nonce))
}
