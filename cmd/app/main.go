package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"saas-subscription-backend/internal/config"
	payAdapters "saas-subscription-backend/internal/infra/adapters/payment"
	"saas-subscription-backend/internal/infra/cache"
	pg "saas-subscription-backend/internal/infra/db/postgres"
	"saas-subscription-backend/internal/infra/logging"
	"saas-subscription-backend/internal/infra/metrics"
	red "saas-subscription-backend/internal/infra/redis"
	"saas-subscription-backend/internal/infra/sched"
	"saas-subscription-backend/internal/infra/web"
	"saas-subscription-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis (rate limiting) ----
	var limiter web.RateLimiter
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		if cfg.Runtime.Dev {
			logger.Warn().Err(err).Msg("redis unavailable, rate limiting disabled")
		} else {
			logger.Fatal().Err(err).Msg("redis")
		}
	} else {
		defer redisClient.Close()
		limiter = red.NewRateLimiter(redisClient)
	}

	// ---- Repositories ----
	txm := pg.NewTxManager(pool)
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	memberRepo := pg.NewMemberRepo(pool)

	// ---- Gateway ----
	gateway, err := payAdapters.NewOmiseGateway(cfg.Gateway.SecretKey, cfg.Gateway.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("payment gateway")
	}

	// ---- Webhook dedup ----
	dedup := cache.NewDedupCache(cfg.Webhook.DedupTTL)
	go dedup.StartSweep(ctx, cfg.Webhook.SweepInterval)

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(
		payRepo, subRepo, planRepo, memberRepo, txm, gateway, dedup,
		cfg.Gateway.MinPromptPaySatang, cfg.Polling.GatewayCheckEvery, logger,
	)
	subUC := usecase.NewSubscriptionUseCase(subRepo, logger)
	planUC := usecase.NewPlanUseCase(planRepo)
	memberUC := usecase.NewMemberUseCase(memberRepo)

	// ---- Background reconciler ----
	reconciler := sched.NewPaymentReconciler(paymentUC, payRepo,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.BatchSize, logger)
	go reconciler.Start(ctx)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL)
	server := web.NewServer(paymentUC, subUC, planUC, memberUC, auth, limiter, web.ServerOptions{
		PurchasePerMinute: cfg.RateLimit.PurchasePerMinute,
		PollMaxAttempts:   cfg.Polling.MaxAttempts,
		PollInterval:      cfg.Polling.Interval,
	}, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
