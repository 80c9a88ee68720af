package service

import (
	"context"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/testutil"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

const (
	testNonceTTL = 30 * time.Second
	testPoolSize = 3
)

func newTestMinter(t *testing.T) *token.Minter {
	t.Helper()
	ring, err := token.NewSigningKeyRing()
	require.NoError(t, err)
	return token.NewMinter(ring, map[token.Scope]time.Duration{
		token.ScopeRead:  10 * time.Minute,
		token.ScopeWrite: 10 * time.Minute,
		token.ScopeReset: 10 * time.Minute,
	})
}

func seedPool(t *testing.T, store *testutil.MemStore, n int) {
	t.Helper()
	values := make([]string, n)
	for i := range values {
		v, err := vaultcrypt.RandomValue(32)
		require.NoError(t, err)
		values[i] = v
	}
	require.NoError(t, store.SeedPlaceholders(context.Background(), values))
}

func randomVerifier(t *testing.T) (string, []byte) {
	t.Helper()
	raw := make([]byte, vaultcrypt.VerifierSize)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return vaultcrypt.Encoding.EncodeToString(raw), raw
}

type account struct {
	uid           string
	verifier      string
	verifierBytes []byte
	fingerprint   string
	blob          []byte
}

// registerAccount drives the full registration flow: register challenge,
// finalize with a real verifier and fingerprint, initial blob seeded.
func registerAccount(t *testing.T, store *testutil.MemStore, blobs *testutil.MemBlobs, minter *token.Minter, uid string) account {
	t.Helper()
	ctx := context.Background()
	log := testutil.MakeNoopLogger()

	challenge := NewChallenge(store, log, testNonceTTL, testPoolSize)
	res, err := challenge.Issue(ctx, uid, model.IntentRegister)
	require.NoError(t, err)
	require.Equal(t, ChallengeFresh, res.Kind)

	verifier, verifierBytes := randomVerifier(t)
	fpRaw := make([]byte, vaultcrypt.FingerprintSize)
	_, err = rand.Read(fpRaw)
	require.NoError(t, err)
	fingerprint := vaultcrypt.Encoding.EncodeToString(fpRaw)
	blob := []byte("ciphertext-" + uid)

	finalize := NewFinalize(store, blobs, minter, log)
	_, err = finalize.Register(ctx, res.Nonce, verifier, fingerprint, blob)
	require.NoError(t, err)

	return account{
		uid:           uid,
		verifier:      verifier,
		verifierBytes: verifierBytes,
		fingerprint:   fingerprint,
		blob:          blob,
	}
}

// issueAndProve runs challenge plus proof for an existing account and
// returns the grant.
func issueAndProve(t *testing.T, store *testutil.MemStore, minter *token.Minter, acc account, intent model.Intent) Grant {
	t.Helper()
	ctx := context.Background()
	log := testutil.MakeNoopLogger()

	challenge := NewChallenge(store, log, testNonceTTL, testPoolSize)
	res, err := challenge.Issue(ctx, acc.uid, intent)
	require.NoError(t, err)
	require.Equal(t, ChallengeExisting, res.Kind)

	nonceBytes, err := vaultcrypt.Encoding.DecodeString(res.Nonce)
	require.NoError(t, err)
	proof := vaultcrypt.Encoding.EncodeToString(vaultcrypt.ComputeProof(acc.verifierBytes, nonceBytes))

	grant, err := NewProof(store, minter, log).Verify(ctx, res.Nonce, proof)
	require.NoError(t, err)
	return grant
}

func readAllBlob(t *testing.T, blobs *testutil.MemBlobs, fingerprint string) []byte {
	t.Helper()
	rc, err := blobs.Download(context.Background(), fingerprint)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}
