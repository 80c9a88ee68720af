package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, 30, cfg.Auth.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Auth.NonceTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.ReadTokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Auth.ReaperInterval)
	assert.Equal(t, uint32(5), cfg.KDF.Time)
	assert.False(t, cfg.Mail.ResetEnabled())
}

func TestNewConfig_Overrides(t *testing.T) {
	t.Setenv("AUTH_POOL_SIZE", "3")
	t.Setenv("AUTH_NONCE_TTL", "2s")
	t.Setenv("AUTH_REAPER_INTERVAL", "100ms")
	t.Setenv("MAIL_RESEND_API_KEY", "re_test")
	t.Setenv("MAIL_FROM", "vault@example.com")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Auth.PoolSize)
	assert.Equal(t, 2*time.Second, cfg.Auth.NonceTTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Auth.ReaperInterval)
	assert.True(t, cfg.Mail.ResetEnabled())
}

func TestNewConfig_InvalidDuration(t *testing.T) {
	t.Setenv("AUTH_NONCE_TTL", "not-a-duration")

	_, err := NewConfig()
	assert.Error(t, err)
}
