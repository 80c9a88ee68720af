package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpContext "github.com/voidvault/voidvault-server/internal/api/http/context"
	"github.com/voidvault/voidvault-server/internal/testutil"
	"github.com/voidvault/voidvault-server/internal/token"
)

func newTestValidator(t *testing.T) *token.Minter {
	t.Helper()
	ring, err := token.NewSigningKeyRing()
	require.NoError(t, err)
	return token.NewMinter(ring, map[token.Scope]time.Duration{
		token.ScopeRead:  time.Minute,
		token.ScopeWrite: time.Minute,
		token.ScopeReset: time.Minute,
	})
}

func TestAuthenticate_RequireScope(t *testing.T) {
	minter := newTestValidator(t)
	cm := httpContext.NewManager()
	authenticate := NewAuthenticate(minter, cm, testutil.MakeNoopLogger())

	var gotFingerprint string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFingerprint, _ = cm.GetFingerprintFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := authenticate.RequireScope(token.ScopeRead)(next)

	readToken, _, err := minter.Mint("fp-mw", token.ScopeRead)
	require.NoError(t, err)
	writeToken, _, err := minter.Mint("fp-mw", token.ScopeWrite)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid token", authHeader: "Bearer " + readToken, wantStatus: http.StatusOK},
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scope", authHeader: "Bearer " + writeToken, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", authHeader: "Bearer garbage", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotFingerprint = ""
			req := httptest.NewRequest(http.MethodGet, "/vault/v1/data", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "fp-mw", gotFingerprint)
			} else {
				assert.Empty(t, gotFingerprint)
			}
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	ring, err := token.NewSigningKeyRing()
	require.NoError(t, err)
	minter := token.NewMinter(ring, map[token.Scope]time.Duration{
		token.ScopeRead: -time.Minute,
	})
	authenticate := NewAuthenticate(minter, httpContext.NewManager(), testutil.MakeNoopLogger())
	protected := authenticate.RequireScope(token.ScopeRead)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	expired, _, err := minter.Mint("fp-old", token.ScopeRead)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/vault/v1/data", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
