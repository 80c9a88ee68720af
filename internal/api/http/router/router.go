package router

import (
	"net/http"

	"github.com/justinas/alice"

	"github.com/voidvault/voidvault-server/internal/api/http/handler"
	"github.com/voidvault/voidvault-server/internal/api/http/middleware"
	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

// Router wires the protocol endpoints, scope middleware and logging
// into one http.Handler.
type Router struct {
	challengeService handler.ChallengeService
	proofService     handler.ProofService
	finalizeService  handler.FinalizeService
	contentService   handler.ContentService
	resetService     handler.ResetService
	validator        middleware.TokenValidator
	contextManager   model.ContextManager
	params           vaultcrypt.Params
	logger           *logger.Logger
}

// New creates a new Router instance. params are the argon2id work
// factors advertised to clients.
func New(
	challengeService handler.ChallengeService,
	proofService handler.ProofService,
	finalizeService handler.FinalizeService,
	contentService handler.ContentService,
	resetService handler.ResetService,
	validator middleware.TokenValidator,
	contextManager model.ContextManager,
	params vaultcrypt.Params,
	logger *logger.Logger,
) *Router {
	return &Router{
		challengeService: challengeService,
		proofService:     proofService,
		finalizeService:  finalizeService,
		contentService:   contentService,
		resetService:     resetService,
		validator:        validator,
		contextManager:   contextManager,
		params:           params,
		logger:           logger,
	}
}

// Register builds the route table. Anonymous endpoints carry no
// middleware beyond logging; data and recovery endpoints sit behind
// their scope's token check.
func (r *Router) Register() http.Handler {
	authHandler := handler.NewAuth(r.challengeService, r.proofService, r.finalizeService, r.params, r.logger)
	contentHandler := handler.NewContent(r.contentService, r.contextManager, r.logger)
	resetHandler := handler.NewReset(r.resetService, r.contextManager, r.logger)

	authenticate := middleware.NewAuthenticate(r.validator, r.contextManager, r.logger)
	requireRead := alice.New(authenticate.RequireScope(token.ScopeRead))
	requireWrite := alice.New(authenticate.RequireScope(token.ScopeWrite))
	requireReset := alice.New(authenticate.RequireScope(token.ScopeReset))

	mux := http.NewServeMux()

	mux.HandleFunc("GET /vault/v1/params", authHandler.Params)
	mux.HandleFunc("POST /vault/v1/challenge", authHandler.Challenge)
	mux.HandleFunc("POST /vault/v1/proof", authHandler.Proof)
	mux.HandleFunc("POST /vault/v1/register", authHandler.Register)

	mux.Handle("GET /vault/v1/data", requireRead.ThenFunc(contentHandler.Get))
	mux.Handle("POST /vault/v1/data", requireWrite.ThenFunc(contentHandler.Put))

	mux.HandleFunc("POST /vault/v1/reset/request", resetHandler.Request)
	mux.Handle("POST /vault/v1/reset/password", requireReset.ThenFunc(resetHandler.Password))
	mux.Handle("POST /vault/v1/reset/key", requireReset.ThenFunc(resetHandler.Key))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logging := middleware.NewLogging(r.logger)
	return alice.New(logging.Handle).Then(mux)
}
