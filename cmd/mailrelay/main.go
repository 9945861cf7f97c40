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

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"mailrelay/internal/adapter/driven/msgraph"
	sqliteadapter "mailrelay/internal/adapter/driven/sqlite"
	httphandler "mailrelay/internal/adapter/driving/http"
	"mailrelay/internal/application"
	"mailrelay/internal/config"
	"mailrelay/internal/secrets"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load .env if present, then configuration (fail fast on missing
	// required env vars).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"tenant_id", cfg.TenantID,
		"scopes", cfg.Scopes,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
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

	// 5. Wire adapters.
	codec, err := secrets.NewCodec(cfg.SecretKey)
	if err != nil {
		return err
	}
	credentialStore := sqliteadapter.NewCredentialRepo(db, codec)

	provider := msgraph.NewAuth(cfg.ClientID, cfg.ClientSecret, cfg.TenantID, cfg.RedirectURI, cfg.Scopes, cfg.GraphBaseURL)
	mailClient := msgraph.NewMail(cfg.GraphBaseURL, cfg.InboxPageSize)

	// 6. Create application services.
	authSvc := application.NewAuthService(provider, credentialStore, cfg.RejectGuests, slog.Default())
	mailSvc := application.NewMailService(provider, mailClient, credentialStore, slog.Default())

	// 7. Create HTTP handler and register routes.
	handler := httphandler.NewHandler(authSvc, mailSvc, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("mailrelay started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
