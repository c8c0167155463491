package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	clioadapter "github.com/ericfisherdev/intakesync/internal/adapter/driven/clio"
	sqliteadapter "github.com/ericfisherdev/intakesync/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/intakesync/internal/adapter/driving/http"
	"github.com/ericfisherdev/intakesync/internal/application"
	"github.com/ericfisherdev/intakesync/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"resync_policy", cfg.ResyncPolicy,
		"max_attempts", cfg.MaxAttempts,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	intakeStore := sqliteadapter.NewIntakeRepo(db)
	credentialStore, err := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}

	// Release sync leases stranded by a previous crash so those records
	// are syncable again.
	released, err := intakeStore.RecoverInterruptedSyncs(ctx)
	if err != nil {
		return err
	}
	if released > 0 {
		slog.Warn("released interrupted sync leases", "count", released)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	refresher := clioadapter.NewRefresherWithHTTPClient(
		httpClient,
		clioadapter.DefaultTokenURL,
		cfg.ClioClientID,
		cfg.ClioClientSecret,
		cfg.ClioRedirectURI,
		credentialStore,
	)
	clioClient := clioadapter.NewClientWithHTTPClient(
		httpClient,
		clioadapter.DefaultBaseURL,
		refresher,
		clioadapter.WithMaxAttempts(cfg.MaxAttempts),
	)

	// 6. Wire application services.
	syncSvc := application.NewSyncService(intakeStore, credentialStore, clioClient, cfg.ResyncPolicy)
	authSvc := application.NewAuthService(credentialStore)

	// 7. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(intakeStore, syncSvc, authSvc, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("intakesync started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout to drain in-flight syncs.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
