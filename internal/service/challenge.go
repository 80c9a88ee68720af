package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

const challengeValueSize = 32

// ChallengeKind tags the internal outcome of an issue call. The handler
// layer erases Fresh and Existing into one wire shape and Invalid into
// the unified rejection code; internal logic keeps the distinction.
type ChallengeKind int

const (
	// ChallengeInvalid covers both "no such account" (login-class) and
	// "account taken" (register).
	ChallengeInvalid ChallengeKind = iota
	// ChallengeFresh borrowed a placeholder for a new registration.
	ChallengeFresh
	// ChallengeExisting reused an existing credential's salt.
	ChallengeExisting
)

// ChallengeResult is the issuer's typed outcome.
type ChallengeResult struct {
	Kind  ChallengeKind
	Salt  string
	Nonce string
}

// Challenge decides, per identity and intent, whether to fabricate a
// fresh credential slot or reuse an existing one, returning structurally
// identical responses either way.
type Challenge struct {
	store    model.AuthStore
	logger   *logger.Logger
	nonceTTL time.Duration
	poolSize int

	now       func() time.Time
	randIndex func(n int) int
}

// NewChallenge creates the issuer. poolSize bounds the random scan start
// for placeholder borrowing.
func NewChallenge(store model.AuthStore, logger *logger.Logger, nonceTTL time.Duration, poolSize int) *Challenge {
	return &Challenge{
		store:     store,
		logger:    logger,
		nonceTTL:  nonceTTL,
		poolSize:  poolSize,
		now:       time.Now,
		randIndex: func(n int) int { return rand.IntN(n) + 1 },
	}
}

// Issue runs the decision table for (uid, intent). The register path
// borrows a placeholder and writes the credential and nonce atomically;
// a torn write would strand an unborrowable slot.
func (s *Challenge) Issue(ctx context.Context, uid string, intent model.Intent) (ChallengeResult, error) {
	cred, err := s.store.GetCredential(ctx, uid)
	exists := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return ChallengeResult{}, fmt.Errorf("failed to look up credential: %w", err)
	}

	switch intent {
	case model.IntentRegister:
		if exists {
			return ChallengeResult{Kind: ChallengeInvalid}, nil
		}
		return s.issueFresh(ctx, uid, intent)
	case model.IntentLogin, model.IntentWrite, model.IntentReset:
		if !exists {
			return ChallengeResult{Kind: ChallengeInvalid}, nil
		}
		return s.issueExisting(ctx, cred, intent)
	default:
		return ChallengeResult{Kind: ChallengeInvalid}, nil
	}
}

func (s *Challenge) issueFresh(ctx context.Context, uid string, intent model.Intent) (ChallengeResult, error) {
	// A pool that was never sized cannot lend a slot.
	if s.poolSize <= 0 {
		s.logger.Error("Challenge service: placeholder pool exhausted", "uid", uid)
		return ChallengeResult{}, model.ErrPoolExhausted
	}

	salt, err := vaultcrypt.RandomValue(challengeValueSize)
	if err != nil {
		return ChallengeResult{}, err
	}
	nonce, err := vaultcrypt.RandomValue(challengeValueSize)
	if err != nil {
		return ChallengeResult{}, err
	}

	now := s.now()
	_, err = s.store.CreateFreshCredential(ctx,
		model.Credential{UID: uid, Salt: salt, CreatedAt: now},
		model.Nonce{Value: nonce, UID: uid, Intent: intent, ExpiresAt: now.Add(s.nonceTTL)},
		s.randIndex(s.poolSize),
	)
	if err != nil {
		if errors.Is(err, model.ErrPoolExhausted) {
			s.logger.Error("Challenge service: placeholder pool exhausted", "uid", uid)
			return ChallengeResult{}, model.ErrPoolExhausted
		}
		return ChallengeResult{}, fmt.Errorf("failed to provision fresh credential: %w", err)
	}

	s.logger.Info("Challenge service: fresh challenge issued", "uid", uid)
	return ChallengeResult{Kind: ChallengeFresh, Salt: salt, Nonce: nonce}, nil
}

func (s *Challenge) issueExisting(ctx context.Context, cred model.Credential, intent model.Intent) (ChallengeResult, error) {
	nonce, err := vaultcrypt.RandomValue(challengeValueSize)
	if err != nil {
		return ChallengeResult{}, err
	}

	err = s.store.CreateNonce(ctx, model.Nonce{
		Value:     nonce,
		UID:       cred.UID,
		Intent:    intent,
		ExpiresAt: s.now().Add(s.nonceTTL),
	})
	if err != nil {
		return ChallengeResult{}, fmt.Errorf("failed to create nonce: %w", err)
	}

	s.logger.Info("Challenge service: challenge issued", "uid", cred.UID, "intent", string(intent))
	return ChallengeResult{Kind: ChallengeExisting, Salt: cred.Salt, Nonce: nonce}, nil
}
