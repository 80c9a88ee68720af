package model

import "context"

// ContextManager carries the authenticated identity through request
// contexts. The stored value is the content-key fingerprint embedded in
// the bearer token, not a login identity.
type ContextManager interface {
	SetFingerprintToContext(ctx context.Context, fingerprint string) context.Context
	GetFingerprintFromContext(ctx context.Context) (string, bool)
}
