package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	httpContext "github.com/voidvault/voidvault-server/internal/api/http/context"
	"github.com/voidvault/voidvault-server/internal/api/http/router"
	httpServer "github.com/voidvault/voidvault-server/internal/api/http/server"
	"github.com/voidvault/voidvault-server/internal/config"
	"github.com/voidvault/voidvault-server/internal/logger"
	"github.com/voidvault/voidvault-server/internal/mail"
	"github.com/voidvault/voidvault-server/internal/model"
	"github.com/voidvault/voidvault-server/internal/repository/postgres"
	"github.com/voidvault/voidvault-server/internal/server"
	"github.com/voidvault/voidvault-server/internal/service"
	storage "github.com/voidvault/voidvault-server/internal/storage/minio"
	"github.com/voidvault/voidvault-server/internal/token"
	"github.com/voidvault/voidvault-server/internal/vaultcrypt"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("failed to initialize storage", "error", err)
	}
	defer db.Close()

	authRepo := postgres.NewAuthRepository(db)

	// The placeholder pool is ephemeral: fresh unguessable values every
	// start, cleared on shutdown.
	if err := seedPlaceholderPool(ctx, authRepo, cfg.Auth.PoolSize); err != nil {
		logger.Fatal("failed to seed placeholder pool", "error", err)
	}
	logger.Info("placeholder pool seeded", "size", cfg.Auth.PoolSize)

	// Signing secrets live only in this process; a restart invalidates
	// every outstanding token.
	ring, err := token.NewSigningKeyRing()
	if err != nil {
		logger.Fatal("failed to generate signing keys", "error", err)
	}
	minter := token.NewMinter(ring, map[token.Scope]time.Duration{
		token.ScopeRead:  cfg.Auth.ReadTokenTTL,
		token.ScopeWrite: cfg.Auth.WriteTokenTTL,
		token.ScopeReset: cfg.Auth.ResetTokenTTL,
	})

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Fatal("failed to create minio client", "error", err)
	}
	blobStore, err := storage.NewClient(ctx, minioClient, cfg.Storage.Bucket)
	if err != nil {
		logger.Fatal("failed to initialize blob store", "error", err)
	}

	var mailer model.Mailer
	if cfg.Mail.ResetEnabled() {
		mailer = mail.NewResendMailer(cfg.Mail.ResendAPIKey, cfg.Mail.From)
	} else {
		logger.Info("mail delivery not configured, email reset disabled")
		mailer = mail.NewDisabledMailer(logger)
	}

	challengeService := service.NewChallenge(authRepo, logger, cfg.Auth.NonceTTL, cfg.Auth.PoolSize)
	proofService := service.NewProof(authRepo, minter, logger)
	finalizeService := service.NewFinalize(authRepo, blobStore, minter, logger)
	contentService := service.NewContent(blobStore, logger)
	resetService := service.NewReset(authRepo, blobStore, mailer, minter, logger)
	reaper := service.NewReaper(authRepo, logger, cfg.Auth.ReaperInterval)

	r := router.New(
		challengeService,
		proofService,
		finalizeService,
		contentService,
		resetService,
		minter,
		httpContext.NewManager(),
		vaultcrypt.Params{Time: cfg.KDF.Time, MemKiB: cfg.KDF.MemKiB, Par: cfg.KDF.Par},
		logger,
	)
	srv := httpServer.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.HTTP.Port))

	var sl model.SecurityLayer
	if cfg.HTTP.EnableHTTPS {
		sl = server.NewTLSListener(cfg.HTTP.CertFileName, cfg.HTTP.PrivateKeyFileName)
	} else {
		sl = server.NewPlainListener()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(srv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", srv.Address())
	}

	if err := authRepo.ClearPlaceholders(shutdownCtx); err != nil {
		logger.Error("failed to clear placeholder pool", "error", err)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func seedPlaceholderPool(ctx context.Context, repo *postgres.AuthRepository, size int) error {
	values := make([]string, size)
	for i := range values {
		v, err := vaultcrypt.RandomValue(32)
		if err != nil {
			return err
		}
		values[i] = v
	}
	return repo.SeedPlaceholders(ctx, values)
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
