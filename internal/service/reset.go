package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// Reset handles out-of-band credential recovery. A reset token is
// delivered by email and authorizes two operations: rotating the
// authentication verifier and moving the vault to a new content key.
type Reset struct {
	store  model.AuthStore
	blobs  model.Storage
	mailer model.Mailer
	minter *token.Minter
	logger *logger.Logger
}

func NewReset(
	store model.AuthStore,
	blobs model.Storage,
	mailer model.Mailer,
	minter *token.Minter,
	logger *logger.Logger,
) *Reset {
	return &Reset{store: store, blobs: blobs, mailer: mailer, minter: minter, logger: logger}
}

// Request mints a reset-scoped token for the account registered under
// the email address and hands it to the mailer. The salt is returned so
// the client can re-derive key material during the reset; an unknown
// address reports model.ErrNotFoundOrExists, indistinguishable on the
// wire from any other rejection.
func (s *Reset) Request(ctx context.Context, email string) (string, error) {
	uid, err := vaultcrypt.DeriveIdentity(email, nil)
	if err != nil {
		return "", fmt.Errorf("failed to derive identity: %w", err)
	}

	cred, err := s.store.GetCredential(ctx, uid)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrNotFoundOrExists
		}
		return "", fmt.Errorf("failed to get credential: %w", err)
	}

	mapping, err := s.store.GetKeyMapping(ctx, cred.Verifier)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// Registered but never finalized. Nothing to reset.
			return "", model.ErrNotFoundOrExists
		}
		return "", fmt.Errorf("failed to get key mapping: %w", err)
	}

	resetToken, _, err := s.minter.Mint(mapping.Fingerprint, token.ScopeReset)
	if err != nil {
		s.logger.Error("Reset service: failed to mint reset token", "error", err.Error())
		return "", fmt.Errorf("failed to mint reset token: %w", err)
	}

	if err := s.mailer.SendResetToken(ctx, email, resetToken); err != nil {
		s.logger.Error("Reset service: failed to send reset email", "error", err.Error())
		return "", fmt.Errorf("failed to send reset email: %w", err)
	}

	return cred.Salt, nil
}

// RotatePassword replaces the authentication verifier for the account
// identified by the token's fingerprint. The key mapping moves to the
// new verifier in the same transaction.
func (s *Reset) RotatePassword(ctx context.Context, fingerprint, verifier string) error {
	if _, err := vaultcrypt.Encoding.DecodeString(verifier); err != nil {
		return fmt.Errorf("%w: malformed verifier", model.ErrUnauthenticated)
	}

	if err := s.store.RotateVerifier(ctx, fingerprint, verifier); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUnauthenticated
		}
		return fmt.Errorf("failed to rotate verifier: %w", err)
	}

	return nil
}

// RotateKey moves the vault to a new content key. The old ciphertext is
// returned so the client can decrypt it with the old key and push a
// re-encrypted copy; a fresh blob is seeded under the new fingerprint
// in the meantime.
func (s *Reset) RotateKey(ctx context.Context, oldFingerprint, newFingerprint string, seed []byte) ([]byte, error) {
	if _, err := vaultcrypt.Encoding.DecodeString(newFingerprint); err != nil {
		return nil, fmt.Errorf("%w: malformed fingerprint", model.ErrUnauthenticated)
	}

	rc, err := s.blobs.Download(ctx, oldFingerprint)
	if err != nil {
		s.logger.Error("Reset service: failed to download old blob", "error", err.Error())
		return nil, fmt.Errorf("failed to download old blob: %w", err)
	}
	oldBlob, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read old blob: %w", err)
	}

	if err := s.store.RotateFingerprint(ctx, oldFingerprint, newFingerprint); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to rotate fingerprint: %w", err)
	}

	if err := s.blobs.Upload(ctx, newFingerprint, bytes.NewReader(seed)); err != nil {
		s.logger.Error("Reset service: failed to seed new blob", "error", err.Error())
		return nil, fmt.Errorf("failed to seed new blob: %w", err)
	}

	if err := s.blobs.Delete(ctx, oldFingerprint); err != nil {
		// The mapping already moved; the orphan is only wasted space.
		s.logger.Error("Reset service: failed to delete old blob", "fingerprint", oldFingerprint, "error", err.Error())
	}

	return oldBlob, nil
}
