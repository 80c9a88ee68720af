package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
)

// ResetService handles email-initiated credential recovery.
type ResetService interface {
	Request(ctx context.Context, email string) (salt string, err error)
	RotatePassword(ctx context.Context, fingerprint, verifier string) error
	RotateKey(ctx context.Context, oldFingerprint, newFingerprint string, seed []byte) ([]byte, error)
}

// Reset handles the recovery endpoints. Request is anonymous; the two
// rotation endpoints require a reset-scoped bearer token.
type Reset struct {
	resetService   ResetService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewReset creates a new Reset handler.
func NewReset(resetService ResetService, contextManager model.ContextManager, logger *logger.Logger) *Reset {
	return &Reset{
		resetService:   resetService,
		contextManager: contextManager,
		logger:         logger,
	}
}

type resetRequestRequest struct {
	UID string `json:"uid"`
}

type resetRequestResponse struct {
	Salt string `json:"salt"`
}

// Request mails a reset token to the given address and returns the
// account's salt. Unknown addresses share the unified rejection.
func (h *Reset) Request(w http.ResponseWriter, r *http.Request) {
	var req resetRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rejected(w)
		return
	}
	if req.UID == "" {
		rejected(w)
		return
	}

	salt, err := h.resetService.Request(r.Context(), req.UID)
	if err != nil {
		handleError(w, h.logger, "reset request", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resetRequestResponse{Salt: salt})
}

type resetPasswordRequest struct {
	Verifier string `json:"verifier"`
}

// Password rotates the verifier for the token's account.
func (h *Reset) Password(w http.ResponseWriter, r *http.Request) {
	fingerprint, ok := h.contextManager.GetFingerprintFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Verifier == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := h.resetService.RotatePassword(r.Context(), fingerprint, req.Verifier); err != nil {
		handleResetError(w, h.logger, "reset password", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type resetKeyRequest struct {
	Fingerprint string `json:"fingerprint"`
	Blob        string `json:"blob"`
}

// Key moves the vault to a new content key and returns the old
// ciphertext so the client can migrate it.
func (h *Reset) Key(w http.ResponseWriter, r *http.Request) {
	fingerprint, ok := h.contextManager.GetFingerprintFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req resetKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fingerprint == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	oldBlob, err := h.resetService.RotateKey(r.Context(), fingerprint, req.Fingerprint, []byte(req.Blob))
	if err != nil {
		handleResetError(w, h.logger, "reset key", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(oldBlob)
}

// handleResetError is handleError with the authenticated-endpoint
// convention: rejections are 401, not the anonymous erasure status.
func handleResetError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	switch {
	case isRejection(err):
		w.WriteHeader(http.StatusUnauthorized)
	default:
		log.Error("request failed", "op", op, "error", err.Error())
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
