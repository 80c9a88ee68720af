package middleware

import (
	"net/http"
	"strings"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/token"
)

// TokenValidator checks a bearer token against a required scope and
// returns the embedded content-key fingerprint.
type TokenValidator interface {
	Validate(tokenString string, required token.Scope) (string, error)
}

// Authenticate validates scoped bearer tokens and injects the
// fingerprint into the request context.
type Authenticate struct {
	validator      TokenValidator
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(validator TokenValidator, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{validator: validator, contextManager: contextManager, logger: logger}
}

// RequireScope returns a middleware constructor rejecting any request
// not carrying a valid token of the given scope. A read token on a
// write endpoint fails exactly like no token at all.
func (m *Authenticate) RequireScope(required token.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if tokenString == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			fingerprint, err := m.validator.Validate(tokenString, required)
			if err != nil {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := m.contextManager.SetFingerprintToContext(r.Context(), fingerprint)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
