package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voidvault/voidvault-server/internal/model"
)

func testTTLs() map[Scope]time.Duration {
	return map[Scope]time.Duration{
		ScopeRead:  10 * time.Minute,
		ScopeWrite: 10 * time.Minute,
		ScopeReset: 10 * time.Minute,
	}
}

func TestMinter_MintAndValidate(t *testing.T) {
	ring, err := NewSigningKeyRing()
	require.NoError(t, err)
	m := NewMinter(ring, testTTLs())

	signed, expiresAt, err := m.Mint("fingerprint-1", ScopeRead)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, time.Minute)

	fp, err := m.Validate(signed, ScopeRead)
	require.NoError(t, err)
	assert.Equal(t, "fingerprint-1", fp)
}

func TestMinter_ScopeMismatch(t *testing.T) {
	ring, err := NewSigningKeyRing()
	require.NoError(t, err)
	m := NewMinter(ring, testTTLs())

	signed, _, err := m.Mint("fingerprint-1", ScopeRead)
	require.NoError(t, err)

	_, err = m.Validate(signed, ScopeWrite)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestMinter_Expired(t *testing.T) {
	ring, err := NewSigningKeyRing()
	require.NoError(t, err)
	m := NewMinter(ring, testTTLs())

	signed, _, err := m.Mint("fingerprint-1", ScopeRead)
	require.NoError(t, err)

	// Advance the validation clock past the TTL.
	m.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, err = m.Validate(signed, ScopeRead)
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestMinter_GarbageToken(t *testing.T) {
	ring, err := NewSigningKeyRing()
	require.NoError(t, err)
	m := NewMinter(ring, testTTLs())

	_, err = m.Validate("not-a-jwt", ScopeRead)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestMinter_RingRestartInvalidatesTokens(t *testing.T) {
	ring1, err := NewSigningKeyRing()
	require.NoError(t, err)
	signed, _, err := NewMinter(ring1, testTTLs()).Mint("fp", ScopeRead)
	require.NoError(t, err)

	ring2, err := NewSigningKeyRing()
	require.NoError(t, err)
	_, err = NewMinter(ring2, testTTLs()).Validate(signed, ScopeRead)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
}

func TestSigningKeyRing_DistinctSecretsPerScope(t *testing.T) {
	ring, err := NewSigningKeyRing()
	require.NoError(t, err)

	read, err := ring.Secret(ScopeRead)
	require.NoError(t, err)
	write, err := ring.Secret(ScopeWrite)
	require.NoError(t, err)
	reset, err := ring.Secret(ScopeReset)
	require.NoError(t, err)

	assert.NotEqual(t, read, write)
	assert.NotEqual(t, read, reset)
	assert.NotEqual(t, write, reset)

	_, err = ring.Secret(Scope("bogus"))
	assert.Error(t, err)
}
