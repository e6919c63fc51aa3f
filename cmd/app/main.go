// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"edupay-service/internal/config"
	"edupay-service/internal/infra/api"
	"edupay-service/internal/infra/db/postgres"
	"edupay-service/internal/infra/logging"
	"edupay-service/internal/infra/metrics"
	"edupay-service/internal/infra/payment"
	rds "edupay-service/internal/infra/redis"
	"edupay-service/internal/infra/sched"
	"edupay-service/internal/usecase"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	dev := flag.Bool("dev", false, "enable development mode")
	flag.Parse()

	cfg, err := config.Load(*configPath, *dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Bool("dev", cfg.Runtime.Dev).Msg("edupay service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	redisClient, err := rds.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	// repositories
	paymentRepo := postgres.NewPaymentRepo(pool)
	subRepo := postgres.NewSubscriptionRepo(pool)
	userRepo := postgres.NewUserRepo(pool)
	outboxRepo := postgres.NewOutboxRepo(pool)
	txManager := postgres.NewTxManager(pool)

	gateway := payment.NewMomoGateway(cfg.Payment.Provider.BaseURL, cfg.Payment.Provider.APIKey)

	// use cases
	payUC := usecase.NewPaymentUseCase(paymentRepo, subRepo, outboxRepo, gateway, txManager, usecase.PaymentConfig{
		RegistrationFee: cfg.Payment.RegistrationFee,
		Currency:        cfg.Payment.Currency,
		WebhookSecret:   cfg.Payment.Provider.WebhookSecret,
		DuplicateWindow: cfg.Payment.DuplicateWindow,
	}, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, userRepo, payUC, logger)
	accessUC, err := usecase.NewAccessUseCase(userRepo, subRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("access use case init failed")
	}
	outboxProc := usecase.NewOutboxProcessor(paymentRepo, subRepo, userRepo, logger)

	metrics.MustRegister()

	// HTTP edge
	authManager := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	limiter := rds.NewRateLimiter(redisClient)
	server := api.NewServer(cfg.HTTP.Port, api.ServerDeps{
		Auth:          authManager,
		Limiter:       limiter,
		Payments:      api.NewPaymentHandlers(payUC, logger),
		Subs:          api.NewSubscriptionHandlers(subUC, accessUC, logger),
		InitiateLimit: cfg.RateLimit.InitiatePerMinute,
	}, logger)

	// background workers
	expiry := sched.NewExpiryWorker(cfg.Sweep.ExpiryInterval, subUC, subRepo, logger)
	reconciler := sched.NewPaymentReconciler(
		payUC, paymentRepo, subRepo,
		cfg.Sweep.ReconcileInterval, cfg.Sweep.StaleAfter, cfg.Sweep.OrphanGrace,
		logger,
	)
	outboxWorker := sched.NewOutboxWorker(cfg.Sweep.OutboxInterval, outboxRepo, txManager, outboxProc, logger)

	go func() {
		if err := expiry.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("expiry worker stopped")
		}
	}()
	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("payment reconciler stopped")
		}
	}()
	go func() {
		if err := outboxWorker.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("outbox worker stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("edupay service stopped")
}
