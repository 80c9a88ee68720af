package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// Finalize commits proven registrations. This is the only path that
// returns a borrowed placeholder to the pool under normal operation.
type Finalize struct {
	store  model.AuthStore
	blobs  model.Storage
	minter *token.Minter
	logger *logger.Logger

	now func() time.Time
}

func NewFinalize(store model.AuthStore, blobs model.Storage, minter *token.Minter, logger *logger.Logger) *Finalize {
	return &Finalize{store: store, blobs: blobs, minter: minter, logger: logger, now: time.Now}
}

// Register consumes the register nonce, swaps the borrowed placeholder
// for the submitted verifier, records the verifier-to-fingerprint
// mapping, seeds the initial content blob and mints a read-scoped
// token. Malformed material is rejected before the nonce is burned so
// the client can retry the finalize.
func (s *Finalize) Register(ctx context.Context, nonceValue, verifier, fingerprint string, blob []byte) (Grant, error) {
	if _, err := vaultcrypt.Encoding.DecodeString(verifier); err != nil {
		return Grant{}, fmt.Errorf("%w: malformed verifier", model.ErrUnauthenticated)
	}
	if _, err := vaultcrypt.Encoding.DecodeString(fingerprint); err != nil {
		return Grant{}, fmt.Errorf("%w: malformed fingerprint", model.ErrUnauthenticated)
	}

	consumed, err := s.store.ConsumeNonce(ctx, nonceValue, []model.Intent{model.IntentRegister}, s.now())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Grant{}, model.ErrUnauthenticated
		}
		if errors.Is(err, model.ErrInvariantViolation) {
			s.logger.Error("Finalize service: nonce consumption matched multiple rows", "nonce", nonceValue)
			return Grant{}, model.ErrInvariantViolation
		}
		return Grant{}, fmt.Errorf("failed to consume register nonce: %w", err)
	}

	if err := s.store.FinalizeCredential(ctx, consumed.Credential.UID, verifier, fingerprint); err != nil {
		return Grant{}, fmt.Errorf("failed to finalize credential: %w", err)
	}

	if err := s.blobs.Upload(ctx, fingerprint, bytes.NewReader(blob)); err != nil {
		return Grant{}, fmt.Errorf("failed to seed content blob: %w", err)
	}

	signed, expiresAt, err := s.minter.Mint(fingerprint, token.ScopeRead)
	if err != nil {
		return Grant{}, fmt.Errorf("failed to mint read token: %w", err)
	}

	s.logger.Info("Finalize service: registration committed", "uid", consumed.Credential.UID)
	return Grant{Token: signed, Scope: token.ScopeRead, ExpiresAt: expiresAt}, nil
}
