package vaultcrypt

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the content-encryption key length.
	KeySize = 32
	// FingerprintSize is the content-key fingerprint length.
	FingerprintSize = 32

	nonceSize = 24
)

// ErrDecryptFailed is returned when a ciphertext fails authentication:
// either it was tampered with or the key is wrong. Callers must treat the
// two cases as indistinguishable.
var ErrDecryptFailed = errors.New("decryption failed: wrong key or corrupted ciphertext")

// Keygen produces a fresh random content-encryption key and its
// fingerprint. Both are generated client-side; only the fingerprint is
// ever sent to the server.
func Keygen() (key [KeySize]byte, fingerprint string, err error) {
	if _, err = rand.Read(key[:]); err != nil {
		return key, "", fmt.Errorf("failed to generate content key: %w", err)
	}
	return key, Fingerprint(key), nil
}

// Fingerprint is a one-way identifier of a content key, used as the blob
// store key and token subject. A matching fingerprint is a UI hint only;
// it authorizes nothing.
func Fingerprint(key [KeySize]byte) string {
	sum := blake2b.Sum256(key[:])
	return Encoding.EncodeToString(sum[:])
}

// Encrypt seals plaintext with a fresh random nonce and returns the
// encoded nonce‖ciphertext envelope.
func Encrypt(plaintext []byte, key [KeySize]byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	return Encoding.EncodeToString(out), nil
}

// Decrypt opens a nonce‖ciphertext envelope. Tampering and wrong keys
// both yield ErrDecryptFailed, never silently corrupted plaintext.
func Decrypt(envelope string, key [KeySize]byte) ([]byte, error) {
	raw, err := Encoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, ErrDecryptFailed
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plaintext, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &key)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
