//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/voidvault/voidvault-server/internal/model"
	repo "github.com/voidvault/voidvault-server/internal/repository/postgres"
)

var conn *repo.Connection

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "voidvault_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/voidvault_test?sslmode=disable", host, port.Port())

	conn, err = repo.NewConnection(ctx, dsn)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	conn.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func seedPool(t *testing.T, r *repo.AuthRepository, values ...string) {
	t.Helper()
	require.NoError(t, r.SeedPlaceholders(context.Background(), values))
}

func freshCred(t *testing.T, r *repo.AuthRepository, uid, nonce string, expiresAt time.Time) model.Credential {
	t.Helper()
	cred, err := r.CreateFreshCredential(context.Background(),
		model.Credential{UID: uid, Salt: "salt-" + uid, CreatedAt: time.Now()},
		model.Nonce{Value: nonce, UID: uid, Intent: model.IntentRegister, ExpiresAt: expiresAt},
		1,
	)
	require.NoError(t, err)
	return cred
}

func TestAuthRepository_RegisterAndFinalize(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-a", "ph-b", "ph-c")

	expiry := time.Now().Add(30 * time.Second)
	cred := freshCred(t, r, "uid-reg-1", "nonce-reg-1", expiry)
	assert.Contains(t, []string{"ph-a", "ph-b", "ph-c"}, cred.Verifier)

	free, err := r.AvailablePlaceholders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, free)

	consumed, err := r.ConsumeNonce(ctx, "nonce-reg-1", []model.Intent{model.IntentRegister}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "uid-reg-1", consumed.Credential.UID)
	assert.Equal(t, cred.Verifier, consumed.Credential.Verifier)

	require.NoError(t, r.FinalizeCredential(ctx, "uid-reg-1", "real-verifier-1", "fp-1"))

	free, err = r.AvailablePlaceholders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, free, "finalize must return the borrowed slot")

	mapping, err := r.GetKeyMapping(ctx, "real-verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", mapping.Fingerprint)

	stored, err := r.GetCredential(ctx, "uid-reg-1")
	require.NoError(t, err)
	assert.Equal(t, "real-verifier-1", stored.Verifier)
}

func TestAuthRepository_ConsumeNonceOnlyOnce(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-once-a", "ph-once-b")

	expiry := time.Now().Add(30 * time.Second)
	freshCred(t, r, "uid-once", "nonce-once", expiry)

	_, err := r.ConsumeNonce(ctx, "nonce-once", []model.Intent{model.IntentRegister}, time.Now())
	require.NoError(t, err)

	_, err = r.ConsumeNonce(ctx, "nonce-once", []model.Intent{model.IntentRegister}, time.Now())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAuthRepository_ConsumeNonce_Expired(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-exp-a")

	expiry := time.Now().Add(-time.Second)
	freshCred(t, r, "uid-exp", "nonce-exp", expiry)

	_, err := r.ConsumeNonce(ctx, "nonce-exp", []model.Intent{model.IntentRegister}, time.Now())
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAuthRepository_ConsumeNonce_IntentMismatch(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-int-a")

	expiry := time.Now().Add(30 * time.Second)
	freshCred(t, r, "uid-int", "nonce-int", expiry)

	_, err := r.ConsumeNonce(ctx, "nonce-int", model.LoginClassIntents, time.Now())
	assert.ErrorIs(t, err, model.ErrNotFound, "register nonce must not satisfy login-class consumption")
}

func TestAuthRepository_ConcurrentBorrowDistinctSlots(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-cc-1", "ph-cc-2", "ph-cc-3")

	expiry := time.Now().Add(30 * time.Second)
	var wg sync.WaitGroup
	verifiers := make([]string, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := r.CreateFreshCredential(ctx,
				model.Credential{UID: fmt.Sprintf("uid-cc-%d", i), Salt: "s", CreatedAt: time.Now()},
				model.Nonce{Value: fmt.Sprintf("nonce-cc-%d", i), UID: fmt.Sprintf("uid-cc-%d", i), Intent: model.IntentRegister, ExpiresAt: expiry},
				2, // same starting index on purpose
			)
			verifiers[i] = cred.Verifier
			errs[i] = err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[verifiers[i]], "slot %q borrowed twice", verifiers[i])
		seen[verifiers[i]] = true
	}

	_, err := r.CreateFreshCredential(ctx,
		model.Credential{UID: "uid-cc-4", Salt: "s", CreatedAt: time.Now()},
		model.Nonce{Value: "nonce-cc-4", UID: "uid-cc-4", Intent: model.IntentRegister, ExpiresAt: expiry},
		1,
	)
	assert.ErrorIs(t, err, model.ErrPoolExhausted)
}

func TestAuthRepository_SweepReclaimsAbandonedRegistration(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-sw-1", "ph-sw-2")

	expired := time.Now().Add(-time.Minute)
	freshCred(t, r, "uid-sw", "nonce-sw", expired)

	free, err := r.AvailablePlaceholders(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, free)

	reaped, err := r.SweepExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reaped, 1)

	free, err = r.AvailablePlaceholders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, free, "sweep must restore the borrowed slot")

	_, err = r.GetCredential(ctx, "uid-sw")
	assert.ErrorIs(t, err, model.ErrNotFound, "abandoned credential must disappear")
}

func TestAuthRepository_RotateVerifier(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-rot-1")

	expiry := time.Now().Add(30 * time.Second)
	freshCred(t, r, "uid-rot", "nonce-rot", expiry)
	require.NoError(t, r.FinalizeCredential(ctx, "uid-rot", "verifier-rot-old", "fp-rot"))

	require.NoError(t, r.RotateVerifier(ctx, "fp-rot", "verifier-rot-new"))

	mapping, err := r.GetKeyMapping(ctx, "verifier-rot-new")
	require.NoError(t, err)
	assert.Equal(t, "fp-rot", mapping.Fingerprint)

	_, err = r.GetKeyMapping(ctx, "verifier-rot-old")
	assert.ErrorIs(t, err, model.ErrNotFound)

	cred, err := r.GetCredential(ctx, "uid-rot")
	require.NoError(t, err)
	assert.Equal(t, "verifier-rot-new", cred.Verifier)
}

func TestAuthRepository_RotateFingerprint(t *testing.T) {
	ctx := context.Background()
	r := repo.NewAuthRepository(conn)
	seedPool(t, r, "ph-rfp-1")

	expiry := time.Now().Add(30 * time.Second)
	freshCred(t, r, "uid-rfp", "nonce-rfp", expiry)
	require.NoError(t, r.FinalizeCredential(ctx, "uid-rfp", "verifier-rfp", "fp-rfp-old"))

	require.NoError(t, r.RotateFingerprint(ctx, "fp-rfp-old", "fp-rfp-new"))

	mapping, err := r.GetKeyMapping(ctx, "verifier-rfp")
	require.NoError(t, err)
	assert.Equal(t, "fp-rfp-new", mapping.Fingerprint)

	err = r.RotateFingerprint(ctx, "fp-missing", "fp-x")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
