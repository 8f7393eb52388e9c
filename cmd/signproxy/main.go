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

	"github.com/ericfisherdev/signproxy/internal/adapter/driven/proxyclient"
	sqliteadapter "github.com/ericfisherdev/signproxy/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/signproxy/internal/adapter/driving/http"
	"github.com/ericfisherdev/signproxy/internal/application"
	"github.com/ericfisherdev/signproxy/internal/config"
	"github.com/ericfisherdev/signproxy/internal/domain/port/driven"
	"github.com/ericfisherdev/signproxy/internal/signature"
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
		"algorithm", cfg.Algorithm,
		"max_skew", cfg.MaxSkew,
		"artifact_quota_bytes", cfg.ArtifactQuotaBytes,
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
	slog.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire stores. Settings and research history live in separate namespaces.
	settingsStore, err := sqliteadapter.NewSettingsRepo(db, cfg.SecretKey)
	if err != nil {
		return err
	}
	if !settingsStore.Encrypted() {
		slog.Warn("SIGNPROXY_SECRET_KEY not set, api key will be stored unencrypted")
	}
	artifactStore := sqliteadapter.NewArtifactRepo(db, driven.ResearchHistory, cfg.ArtifactQuotaBytes)
	slog.Info("artifact store ready", "namespace", artifactStore.Namespace().String())

	// 6. Signing services.
	engine := signature.New(cfg.Algorithm)
	stamper := application.NewStamper(settingsStore, engine, time.Now)
	historySvc := application.NewHistoryService(artifactStore, slog.Default())

	// 6b. Report whether the stored proxy answers a signed request. Failures
	// are informational; the API still starts.
	go probeProxy(ctx, proxyclient.New(settingsStore, stamper))

	// 7. Create HTTP handler and register API routes.
	requireSig := httphandler.RequireSignature(httphandler.SignatureConfig{
		Secret:  cfg.AccessKey,
		Engine:  engine,
		MaxSkew: cfg.MaxSkew,
	}, slog.Default())
	apiHandler := httphandler.NewHandler(settingsStore, historySvc, stamper, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, requireSig, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
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

	slog.Info("signproxy started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// probeProxy sends one signed GET to the configured proxy and logs the outcome.
func probeProxy(ctx context.Context, client *proxyclient.Client) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := client.Do(ctx, http.MethodGet, "/", nil, "")

	var upstream *proxyclient.UpstreamError
	switch {
	case err == nil:
		slog.Info("proxy accepted signed probe")
	case errors.Is(err, application.ErrNoCredential), errors.Is(err, proxyclient.ErrNoProxy):
		slog.Info("proxy probe skipped", "reason", err)
	case errors.As(err, &upstream) && upstream.Unauthorized():
		slog.Warn("proxy rejected signature, check api key and hash algorithm", "status", upstream.StatusCode)
	case errors.As(err, &upstream):
		slog.Info("proxy reachable", "status", upstream.StatusCode)
	default:
		slog.Warn("proxy probe failed", "error", err)
	}
}
