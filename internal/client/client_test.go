package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpContext "github.com/voidvault/voidvault-server/internal/api/http/context"
	"github.com/voidvault/voidvault-server/internal/api/http/router"
	"github.com/voidvault/voidvault-server/internal/service"
	"github.com/voidvault/voidvault-server/internal/testutil"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// testParams keeps argon2id fast in tests.
var testParams = vaultcrypt.Params{Time: 1, MemKiB: 1024, Par: 1}

type testMailer struct {
	tokens []string
}

func (m *testMailer) SendResetToken(_ context.Context, _, tok string) error {
	m.tokens = append(m.tokens, tok)
	return nil
}

func newTestServer(t *testing.T) (*Client, *testMailer) {
	t.Helper()
	store := testutil.NewMemStore()
	blobs := testutil.NewMemBlobs()
	log := testutil.MakeNoopLogger()
	mailer := &testMailer{}

	values := make([]string, 5)
	for i := range values {
		v, err := vaultcrypt.RandomValue(32)
		require.NoError(t, err)
		values[i] = v
	}
	require.NoError(t, store.SeedPlaceholders(context.Background(), values))

	ring, err := token.NewSigningKeyRing()
	require.NoError(t, err)
	minter := token.NewMinter(ring, map[token.Scope]time.Duration{
		token.ScopeRead:  10 * time.Minute,
		token.ScopeWrite: 10 * time.Minute,
		token.ScopeReset: 10 * time.Minute,
	})

	r := router.New(
		service.NewChallenge(store, log, 30*time.Second, len(values)),
		service.NewProof(store, minter, log),
		service.NewFinalize(store, blobs, minter, log),
		service.NewContent(blobs, log),
		service.NewReset(store, blobs, mailer, minter, log),
		minter,
		httpContext.NewManager(),
		testParams,
		log,
	)

	srv := httptest.NewServer(r.Register())
	t.Cleanup(srv.Close)
	// No WithParams: the client must pick up the advertised factors.
	return New(srv.URL), mailer
}

func TestClient_RegisterLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestServer(t)

	secret := []byte(`{"entries":[{"site":"example.com","pwd":"hunter2"}]}`)
	session, err := c.Register(ctx, "alice", "correct horse", secret)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.NotEmpty(t, session.Fingerprint)

	readToken, err := c.Login(ctx, "alice", "correct horse", IntentLogin)
	require.NoError(t, err)

	got, err := c.Pull(ctx, readToken, session.Key)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestClient_PushPull(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestServer(t)

	session, err := c.Register(ctx, "bob", "hunter2", []byte("v1"))
	require.NoError(t, err)

	writeToken, err := c.Login(ctx, "bob", "hunter2", IntentWrite)
	require.NoError(t, err)
	require.NoError(t, c.Push(ctx, writeToken, session.Key, []byte("v2")))

	got, err := c.Pull(ctx, session.Token, session.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)
}

func TestClient_WrongPassword(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestServer(t)

	_, err := c.Register(ctx, "carol", "right password", []byte("vault"))
	require.NoError(t, err)

	_, err = c.Login(ctx, "carol", "wrong password", IntentLogin)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_UnknownAccount(t *testing.T) {
	c, _ := newTestServer(t)

	_, err := c.Login(context.Background(), "nobody", "whatever", IntentLogin)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_DuplicateRegistration(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestServer(t)

	_, err := c.Register(ctx, "dave", "pw", []byte("vault"))
	require.NoError(t, err)

	_, err = c.Register(ctx, "dave", "pw", []byte("vault"))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestClient_EmailResetFlow(t *testing.T) {
	ctx := context.Background()
	c, mailer := newTestServer(t)

	const email = "erin@example.com"
	session, err := c.Register(ctx, email, "old password", []byte("vault"))
	require.NoError(t, err)

	salt, err := c.RequestReset(ctx, email)
	require.NoError(t, err)
	require.Len(t, mailer.tokens, 1)

	err = c.ResetPassword(ctx, mailer.tokens[0], email, "new password", salt)
	require.NoError(t, err)

	// Old password no longer proves anything; the new one does.
	_, err = c.Login(ctx, email, "old password", IntentLogin)
	assert.ErrorIs(t, err, ErrRejected)

	readToken, err := c.Login(ctx, email, "new password", IntentLogin)
	require.NoError(t, err)
	got, err := c.Pull(ctx, readToken, session.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("vault"), got)
}

func TestClient_RekeyFlow(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestServer(t)

	session, err := c.Register(ctx, "frank", "pw", []byte("precious"))
	require.NoError(t, err)

	resetToken, err := c.Login(ctx, "frank", "pw", IntentReset)
	require.NoError(t, err)

	newKey, newFingerprint, recovered, err := c.Rekey(ctx, resetToken, session.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), recovered)
	assert.NotEqual(t, session.Fingerprint, newFingerprint)

	// Push the recovered vault back under the new key.
	writeToken, err := c.Login(ctx, "frank", "pw", IntentWrite)
	require.NoError(t, err)
	require.NoError(t, c.Push(ctx, writeToken, newKey, recovered))

	readToken, err := c.Login(ctx, "frank", "pw", IntentLogin)
	require.NoError(t, err)
	got, err := c.Pull(ctx, readToken, newKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), got)
}

func TestClient_FetchesAdvertisedParams(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestServer(t)

	_, err := c.Register(ctx, "paula", "a passphrase", []byte("v1"))
	require.NoError(t, err)

	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()
	require.True(t, c.paramsKnown)
	assert.Equal(t, testParams, c.params)
}

func TestClient_WithParamsSkipsFetch(t *testing.T) {
	// The base URL is unreachable; a pinned client never consults it
	// for work factors.
	c := New("http://127.0.0.1:0", WithParams(testParams))

	got, err := c.loadParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testParams, got)
}
