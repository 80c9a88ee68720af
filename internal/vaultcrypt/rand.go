package vaultcrypt

import (
	"crypto/rand"
	"fmt"
)

// RandomValue returns size random bytes in wire encoding. Salts, nonces
// and placeholder values all come from here.
func RandomValue(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random value: %w", err)
	}
	return Encoding.EncodeToString(buf), nil
}
