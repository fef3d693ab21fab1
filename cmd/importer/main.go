package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/config"
	"github.com/bankimport/fints-firefly-go/internal/handler"
	"github.com/bankimport/fints-firefly-go/internal/infra/fints"
	"github.com/bankimport/fints-firefly-go/internal/infra/firefly"
	"github.com/bankimport/fints-firefly-go/internal/infra/observability"
	"github.com/bankimport/fints-firefly-go/internal/infra/resilience"
	"github.com/bankimport/fints-firefly-go/internal/infra/session"
	"github.com/bankimport/fints-firefly-go/internal/normalize"
	"github.com/bankimport/fints-firefly-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("bridge_url", cfg.FinTSBridgeURL),
		zap.String("firefly_url", cfg.FireflyURL),
		zap.String("preferred_format", string(cfg.PreferredFormat)),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "fints-firefly-importer")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	dialer := fints.NewClient(
		httpClient,
		cfg.FinTSBridgeURL,
		fints.Credentials{
			BankURL:   cfg.BankURL,
			BankCode:  cfg.BankCode,
			Username:  cfg.BankUsername,
			PIN:       cfg.BankPIN,
			ProductID: cfg.ProductID,
		},
		resilience.NewCircuitBreaker("fints-bridge"),
		resilienceCfg,
		logger,
	)

	sender := firefly.NewClient(
		httpClient,
		cfg.FireflyURL,
		cfg.FireflyToken,
		resilience.NewCircuitBreaker("firefly"),
		resilienceCfg,
		logger,
	)

	// --- Services ---
	var normalizeOpts []normalize.Option
	if cfg.SkipOnUnknownCurrency {
		normalizeOpts = append(normalizeOpts, normalize.SkipOnUnknownCurrency())
	}
	normalizer := normalize.New(logger, normalizeOpts...)

	importSvc := service.NewImportService(
		dialer,
		sender,
		normalizer,
		metrics,
		logger,
		cfg.PreferredFormat,
		cfg.BatchSize,
		cfg.MaxConcurrency,
	)

	authSvc := service.NewAuthService(logger, cfg.AppPasswordHash, cfg.JWTSecret, cfg.JWTAccessTTL)
	if authSvc.Enabled() {
		logger.Info("auth enabled")
	} else {
		logger.Warn("auth disabled: APP_PASSWORD_HASH not set")
	}

	// --- Sessions ---
	sessions := session.New(cfg.SessionTTL)

	// --- Router ---
	router := handler.NewRouter(importSvc, authSvc, sessions, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // bank dialogs can be slow
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
