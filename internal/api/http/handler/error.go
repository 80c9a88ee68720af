package handler

import (
	"errors"
	"net/http"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
)

// handleError collapses every service error into one of three wire
// responses. Unauthenticated and not-found-or-exists share a single
// status with an empty body, so the wire never distinguishes "no such
// account", "account taken", "bad proof" or "expired challenge". Token
// failures on authenticated endpoints get the conventional 401.
// Everything else is a generic 500; the detail goes to the log only.
func handleError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	switch {
	case errors.Is(err, model.ErrNotFoundOrExists), errors.Is(err, model.ErrUnauthenticated):
		w.WriteHeader(http.StatusPaymentRequired)
	case errors.Is(err, model.ErrTokenExpired):
		w.WriteHeader(http.StatusUnauthorized)
	default:
		log.Error("request failed", "op", op, "error", err.Error())
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// isRejection reports whether err is an authorization-class failure
// rather than an internal one.
func isRejection(err error) bool {
	return errors.Is(err, model.ErrNotFoundOrExists) ||
		errors.Is(err, model.ErrUnauthenticated) ||
		errors.Is(err, model.ErrTokenExpired)
}

// rejected writes the unified rejection for malformed input on the
// anonymous endpoints. Malformed and unauthorized are the same thing on
// the wire.
func rejected(w http.ResponseWriter) {
	w.WriteHeader(http.StatusPaymentRequired)
}
