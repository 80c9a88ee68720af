package service

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
)

// Content serves encrypted vault blobs. Blobs are opaque to the server:
// they are stored and returned byte-for-byte under the caller's key
// fingerprint, which token middleware resolves before the handler runs.
type Content struct {
	blobs  model.Storage
	logger *logger.Logger
}

func NewContent(blobs model.Storage, logger *logger.Logger) *Content {
	return &Content{blobs: blobs, logger: logger}
}

// Read returns the blob stored under the fingerprint.
func (s *Content) Read(ctx context.Context, fingerprint string) ([]byte, error) {
	rc, err := s.blobs.Download(ctx, fingerprint)
	if err != nil {
		s.logger.Error("Content service: failed to download blob", "error", err.Error())
		return nil, fmt.Errorf("failed to download blob: %w", err)
	}
	defer rc.Close()

	blob, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	return blob, nil
}

// Write replaces the blob stored under the fingerprint.
func (s *Content) Write(ctx context.Context, fingerprint string, blob []byte) error {
	if err := s.blobs.Upload(ctx, fingerprint, bytes.NewReader(blob)); err != nil {
		s.logger.Error("Content service: failed to upload blob", "error", err.Error())
		return fmt.Errorf("failed to upload blob: %w", err)
	}

	return nil
}
