package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-agent-billing/internal/config"
	pg "ai-agent-billing/internal/infra/db/postgres"
	"ai-agent-billing/internal/infra/gateway"
	"ai-agent-billing/internal/infra/logging"
	"ai-agent-billing/internal/infra/mailer"
	"ai-agent-billing/internal/infra/metrics"
	red "ai-agent-billing/internal/infra/redis"
	"ai-agent-billing/internal/infra/sched"
	"ai-agent-billing/internal/infra/web"
	"ai-agent-billing/internal/infra/worker"
	"ai-agent-billing/internal/usecase"

	"ai-agent-billing/internal/domain/ports/adapter"
)

const (
	adminTokenTTL = 24 * time.Hour
	shutdownGrace = 15 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, log mailer)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewUserRepo(pool)
	txnRepo := pg.NewTransactionRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	agentRepo := pg.NewAgentRepo(pool)
	catalogRepo := pg.NewModelCatalogRepo(pool)
	queueRepo := pg.NewWebhookQueueRepo(pool, tm)
	settingsRepo := pg.NewSettingsRepoCacheDecorator(pg.NewSettingsRepo(pool), redisClient, cfg.Redis.TTL)

	// ---- Gateway adapters ----
	registry := gateway.NewRegistry(
		gateway.NewStripeAdapter(cfg.Gateways.Stripe.APIKey, cfg.Gateways.Stripe.WebhookSecret, logger),
		gateway.NewPayPalAdapter(cfg.Gateways.PayPal.WebhookSecret, logger),
		gateway.NewRazorpayAdapter(cfg.Gateways.Razorpay.KeyID, cfg.Gateways.Razorpay.KeySecret, cfg.Gateways.Razorpay.WebhookSecret, logger),
		gateway.NewPaystackAdapter(cfg.Gateways.Paystack.SecretKey, logger),
		gateway.NewMercadoPagoAdapter(cfg.Gateways.MercadoPago.AccessToken, cfg.Gateways.MercadoPago.WebhookSecret, logger),
	)
	logger.Info().Strs("gateways", registry.Names()).Msg("gateway adapters registered")

	// ---- Side-effect workers ----
	var mail adapter.Mailer
	if cfg.Mailer.SMTPAddr == "" || cfg.Runtime.Dev {
		mail = mailer.NewLogMailer(logger)
	} else {
		mail = mailer.NewSMTPMailer(cfg.Mailer.SMTPAddr, cfg.Mailer.From, cfg.Mailer.Username, cfg.Mailer.Password, logger)
	}
	pool4 := worker.NewPool(4, logger)
	pool4.Start(ctx)
	defer pool4.Stop()
	notifier := worker.NewAsyncNotifier(pool4, mail, logger)

	// ---- Use cases ----
	settings := usecase.NewSettingsProvider(settingsRepo, cfg.Redis.TTL, logger)
	ledgerUC := usecase.NewCreditLedgerUseCase(txnRepo, userRepo, tm, logger)
	refundUC := usecase.NewRefundResolverUseCase(refundRepo, txnRepo, userRepo, tm, notifier, logger)
	reconcilerUC := usecase.NewSubscriptionReconcilerUseCase(subRepo, userRepo, planRepo, agentRepo, catalogRepo, tm, registry, notifier, logger)
	processorUC := usecase.NewWebhookProcessorUseCase(ledgerUC, refundUC, reconcilerUC, queueRepo, registry, settings, logger)

	// ---- Retry scheduler ----
	scheduler := sched.NewRetryScheduler(cfg.Scheduler.Interval, queueRepo, processorUC, settings, logger)
	go func() { _ = scheduler.Run(ctx) }()

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, adminTokenTTL)
	server := web.NewServer(cfg.HTTP.Port, processorUC, ledgerUC, registry, queueRepo, settings, auth, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
