package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"privlens/internal/config"
	"privlens/internal/db"
	apihttp "privlens/internal/http"
	"privlens/internal/logger"
	"privlens/internal/repository"
	"privlens/internal/service"
	"privlens/internal/vision"
)

var configPath = flag.String("config", "./config/config.yaml", "path to config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	appLogger := logger.New(cfg.App.LogLevel, cfg.App.LogFormat, cfg.App.Name)
	appLogger.Info().
		Str("env", cfg.App.Env).
		Str("provider", cfg.Vision.Provider).
		Msg("starting privlens")

	fs := afero.NewOsFs()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	annotator, closeAnnotator := buildAnnotator(ctx, cfg, fs, appLogger)
	defer closeAnnotator()

	var (
		recorder     service.AuditRecorder
		auditService *service.AuditService
	)
	if cfg.AuditEnabled() {
		conn, err := db.Open(cfg.Database.DSN, appLogger)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer func() {
			if err := db.Close(conn); err != nil {
				appLogger.Warn().Err(err).Msg("failed to close database")
			}
		}()

		auditRepo := repository.NewAuditRepository(conn)
		recorder = auditRepo
		auditService = service.NewAuditService(auditRepo, appLogger)
		go runRetention(ctx, auditService, cfg.Database.RetentionDays, appLogger)
		appLogger.Info().Int("retention_days", cfg.Database.RetentionDays).Msg("audit log enabled")
	}

	analysisService := service.NewAnalysisService(annotator, cfg.Vision.Provider, recorder, appLogger)

	router := apihttp.NewRouter(cfg, appLogger)
	handler := apihttp.NewHandler(analysisService, auditService, cfg, fs, appLogger)
	handler.Register(router, apihttp.JWTAuth(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info().Str("addr", srv.Addr).Bool("mock", analysisService.MockMode()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		appLogger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		appLogger.Error().Err(err).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("graceful shutdown failed")
	}
	appLogger.Info().Msg("server exited")
}

// buildAnnotator returns nil in mock mode. Missing credentials do not stop
// the server: every analyze request reports the setup problem instead.
func buildAnnotator(ctx context.Context, cfg *config.Config, fs afero.Fs, log zerolog.Logger) (vision.Annotator, func()) {
	noop := func() {}
	if cfg.Vision.Provider != config.ProviderGoogle {
		log.Warn().Msg("vision provider is mock, responses are canned")
		return nil, noop
	}

	creds, err := vision.ResolveCredentials(fs, cfg.Vision.APIKey, cfg.Vision.CredentialFiles)
	if err != nil {
		log.Warn().Err(err).Msg("vision credentials not found")
		return vision.Unavailable(err), noop
	}

	client, err := vision.NewClient(ctx, creds, vision.Options{
		MaxResults: cfg.Vision.MaxResults,
		Timeout:    cfg.Vision.Timeout,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create vision client")
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close vision client")
		}
	}
}

func runRetention(ctx context.Context, audit *service.AuditService, days int, log zerolog.Logger) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		if _, err := audit.CleanupOld(ctx, days); err != nil {
			log.Warn().Err(err).Msg("audit retention pass failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
