package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-engine/config"
	httpHandler "webhook-engine/internal/adapter/http/handler"
	pgStorage "webhook-engine/internal/adapter/storage/postgres"
	redisStorage "webhook-engine/internal/adapter/storage/redis"
	"webhook-engine/internal/core/ports"
	"webhook-engine/internal/service"
	"webhook-engine/pkg/logger"
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
		Msg("Starting Webhook Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	subRepo := pgStorage.NewSubscriptionRepo(pool)
	deliveryRepo := pgStorage.NewDeliveryLogRepo(pool)

	// Initialize core services
	encSvc, err := service.NewSecretCipher(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize secret cipher")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenVerifier := service.NewJWTTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	// Initialize the delivery engine
	healthMonitor := service.NewHealthMonitor(subRepo, deliveryRepo, cfg.Webhook.FailureThreshold, cfg.Webhook.RecentWindow, logger.WithComponent(log, "health_monitor"))
	dispatcher := service.NewDispatcher(
		&http.Client{Timeout: cfg.Webhook.Timeout},
		encSvc, sigSvc, deliveryRepo, healthMonitor,
		cfg.Webhook.Timeout, logger.WithComponent(log, "dispatcher"),
	)
	bus := service.NewEventBus()
	defer bus.Close()
	broadcaster := service.NewBroadcaster(subRepo, dispatcher, bus, logger.WithComponent(log, "broadcaster"))
	subSvc := service.NewSubscriptionService(subRepo, deliveryRepo, encSvc, log)

	// Initialize rate limit store
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SubscriptionSvc: subSvc,
		Broadcaster:     broadcaster,
		TokenVerifier:   tokenVerifier,
		RateLimitStore:  rateLimitStore,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight deliveries finish before the pools close
	if err := broadcaster.Drain(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Shutdown with deliveries still in flight")
	}

	log.Info().Msg("Server exited")
}
