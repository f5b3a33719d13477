package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acoruss-gateway/config"
	httpHandler "acoruss-gateway/internal/adapter/http/handler"
	pgStorage "acoruss-gateway/internal/adapter/storage/postgres"
	redisStorage "acoruss-gateway/internal/adapter/storage/redis"
	"acoruss-gateway/internal/core/ports"
	"acoruss-gateway/internal/service"
	"acoruss-gateway/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Acoruss payments gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	tenantRepo := pgStorage.NewTenantRepo(pool)
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	webhookLogRepo := pgStorage.NewWebhookDeliveryLogRepo(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	replayCache := redisStorage.NewReplayCache(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	outboundSigSvc := service.NewHMACSHA256SignatureService()
	inboundSigSvc := service.NewHMACSHA512SignatureService()
	processorClient := service.NewProcessorClient(cfg.Processor.SecretKey)

	// Initialize the C4 outbound webhook dispatcher and C6 payment engine
	webhookDispatcher := service.NewWebhookDispatcher(webhookLogRepo, paymentRepo, outboundSigSvc, encSvc, &http.Client{Timeout: cfg.Webhook.Timeout()}, cfg.Webhook.MaxAttempts, cfg.Webhook.Delays(), cfg.Webhook.Timeout(), log)
	paymentEngine := service.NewPaymentEngine(paymentRepo, tenantRepo, idempotencyCache, processorClient, webhookDispatcher, cfg.Server.SiteURL, log)

	// Initialize the C3 inbound webhook verifier
	inboundVerifier := service.NewInboundWebhookVerifier(inboundSigSvc, cfg.Processor.SecretKey, paymentEngine, replayCache, log)

	// Initialize the C5 rate limiter
	rateLimiter := service.NewRateLimiter()

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TenantRepo:      tenantRepo,
		PaymentRepo:     paymentRepo,
		PaymentSvc:      paymentEngine,
		Verifier:        inboundVerifier,
		RateLimiter:     rateLimiter,
		RateLimitMax:    cfg.RateLimit.Max,
		RateLimitWindow: cfg.RateLimit.Window(),
		PublicPageURL:   cfg.Server.PublicPageURL,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
