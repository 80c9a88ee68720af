package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
)

// ContentService reads and writes opaque vault blobs.
type ContentService interface {
	Read(ctx context.Context, fingerprint string) ([]byte, error)
	Write(ctx context.Context, fingerprint string, blob []byte) error
}

// maxBlobSize bounds uploaded blob bodies.
const maxBlobSize = 16 << 20

// Content handles the authenticated data endpoints. The fingerprint
// comes from the bearer token via the authentication middleware.
type Content struct {
	contentService ContentService
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewContent creates a new Content handler.
func NewContent(contentService ContentService, contextManager model.ContextManager, logger *logger.Logger) *Content {
	return &Content{
		contentService: contentService,
		contextManager: contextManager,
		logger:         logger,
	}
}

// Get streams the caller's ciphertext blob.
func (h *Content) Get(w http.ResponseWriter, r *http.Request) {
	fingerprint, ok := h.contextManager.GetFingerprintFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	blob, err := h.contentService.Read(r.Context(), fingerprint)
	if err != nil {
		handleError(w, h.logger, "data read", err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(blob)
}

// Put replaces the caller's ciphertext blob.
func (h *Content) Put(w http.ResponseWriter, r *http.Request) {
	fingerprint, ok := h.contextManager.GetFingerprintFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	blob, err := io.ReadAll(io.LimitReader(r.Body, maxBlobSize))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if err := h.contentService.Write(r.Context(), fingerprint, blob); err != nil {
		handleError(w, h.logger, "data write", err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
