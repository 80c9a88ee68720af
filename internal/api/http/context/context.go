package context

import "context"

type contextKey int

const fingerprintKey contextKey = iota

// Manager carries the authenticated content-key fingerprint through
// request contexts. Handlers never see the bearer token itself.
type Manager struct{}

// NewManager creates a new context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetFingerprintToContext returns a child context carrying fingerprint.
func (m *Manager) SetFingerprintToContext(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, fingerprintKey, fingerprint)
}

// GetFingerprintFromContext retrieves the fingerprint set by the
// authentication middleware, reporting whether one was present.
func (m *Manager) GetFingerprintFromContext(ctx context.Context) (string, bool) {
	fingerprint, ok := ctx.Value(fingerprintKey).(string)
	if !ok || fingerprint == "" {
		return "", false
	}
	return fingerprint, true
}
