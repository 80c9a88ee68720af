package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/service"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// ChallengeService issues challenges for an identity and intent.
type ChallengeService interface {
	Issue(ctx context.Context, uid string, intent model.Intent) (service.ChallengeResult, error)
}

// ProofService verifies possession proofs and mints scoped tokens.
type ProofService interface {
	Verify(ctx context.Context, nonce, proof string) (service.Grant, error)
}

// FinalizeService commits proven registrations.
type FinalizeService interface {
	Register(ctx context.Context, nonce, verifier, fingerprint string, blob []byte) (service.Grant, error)
}

// Auth handles the anonymous endpoints of the protocol: work-factor
// advertisement, challenge issuance, proof verification and
// registration finalization.
type Auth struct {
	challengeService ChallengeService
	proofService     ProofService
	finalizeService  FinalizeService
	params           vaultcrypt.Params
	logger           *logger.Logger
}

// NewAuth creates a new Auth handler advertising the given argon2id
// work factors.
func NewAuth(
	challengeService ChallengeService,
	proofService ProofService,
	finalizeService FinalizeService,
	params vaultcrypt.Params,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		challengeService: challengeService,
		proofService:     proofService,
		finalizeService:  finalizeService,
		params:           params,
		logger:           logger,
	}
}

type paramsResponse struct {
	Time   uint32 `json:"time"`
	MemKiB uint32 `json:"mem"`
	Par    uint8  `json:"par"`
}

// Params advertises the argon2id work factors every client must use
// for verifier derivation. Devices that derive under different factors
// produce mismatching verifiers.
func (h *Auth) Params(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(paramsResponse{
		Time:   h.params.Time,
		MemKiB: h.params.MemKiB,
		Par:    h.params.Par,
	})
}

type challengeRequest struct {
	UID    string `json:"uid"`
	Intent string `json:"intent"`
}

type challengeResponse struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
}

// Challenge issues a salt/nonce pair. Fresh and existing accounts get
// structurally identical responses; every rejection shares one status
// and an empty body.
func (h *Auth) Challenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rejected(w)
		return
	}
	intent, ok := model.ParseIntent(req.Intent)
	if !ok || req.UID == "" {
		rejected(w)
		return
	}

	res, err := h.challengeService.Issue(r.Context(), req.UID, intent)
	if err != nil {
		handleError(w, h.logger, "challenge", err)
		return
	}
	if res.Kind == service.ChallengeInvalid {
		rejected(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(challengeResponse{Salt: res.Salt, Nonce: res.Nonce})
}

type proofRequest struct {
	Nonce string `json:"nonce"`
	Proof string `json:"proof"`
}

type grantResponse struct {
	Token     string    `json:"token"`
	Scope     string    `json:"scope"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Proof exchanges a valid possession proof for a scoped bearer token.
func (h *Auth) Proof(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rejected(w)
		return
	}
	if req.Nonce == "" || req.Proof == "" {
		rejected(w)
		return
	}

	grant, err := h.proofService.Verify(r.Context(), req.Nonce, req.Proof)
	if err != nil {
		handleError(w, h.logger, "proof", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(grantResponse{
		Token:     grant.Token,
		Scope:     string(grant.Scope),
		ExpiresAt: grant.ExpiresAt,
	})
}

type registerRequest struct {
	Nonce       string `json:"nonce"`
	Verifier    string `json:"verifier"`
	Fingerprint string `json:"fingerprint"`
	Blob        string `json:"blob"`
}

type registerResponse struct {
	Token string `json:"token"`
}

// Register finalizes a pending registration: real verifier in, initial
// blob stored, read token out.
func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rejected(w)
		return
	}
	if req.Nonce == "" || req.Verifier == "" || req.Fingerprint == "" {
		rejected(w)
		return
	}

	grant, err := h.finalizeService.Register(r.Context(), req.Nonce, req.Verifier, req.Fingerprint, []byte(req.Blob))
	if err != nil {
		handleError(w, h.logger, "register", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(registerResponse{Token: grant.Token})
}
