package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"serviceportal/internal/config"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
	"serviceportal/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := services.NewLogger(cfg.LogJSON)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal("configuration error", zap.Error(err))
	}

	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	st := store.NewGormStore(db)

	var (
		cache  services.Cache
		locker services.Locker
	)
	redisCache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, pricing is read from the database", zap.Error(err))
	} else {
		defer redisCache.Close()
		cache, locker = redisCache, redisCache
	}

	gateway := services.NewMidtransService(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransIsProduction)
	pricing := services.NewPricingService(st, cache, cfg.PricingCacheTTL, logger)
	payments := services.NewPaymentService(st, gateway, pricing, locker, services.PaymentConfig{
		Currency:  cfg.PaymentCurrency,
		LockTTL:   cfg.PaymentLockTTL,
		FinishURL: cfg.AppURL + "/payments/finish",
	}, logger)

	deps := tasks.Deps{
		Store:      st,
		Payments:   payments,
		AppURL:     cfg.AppURL,
		SessionAge: cfg.SessionMaxAge,
		Log:        logger,
	}
	if cfg.SMTPHost != "" {
		deps.Email = services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom)
	} else {
		logger.Warn("SMTP_HOST not set, email notifications are disabled")
	}
	if cfg.WahaAPIKey != "" {
		deps.Whatsapp = services.NewWahaService(cfg.WahaBaseURL, cfg.WahaAPIKey, cfg.WahaSession)
	} else {
		logger.Warn("WAHA_API_KEY not set, WhatsApp notifications are disabled")
	}

	// Initialize Task Registry
	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, deps)
	runner := tasks.NewRunner(st, registry, logger)

	logger.Info("worker started", zap.Strings("tasks", registry.Names()), zap.Duration("interval", cfg.WorkerInterval))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down worker")
		cancel()
	}()

	interval := cfg.WorkerInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// run once at startup so a restart does not wait a full tick
	processScheduledTasks(ctx, runner, logger)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, runner, logger)
		case <-ctx.Done():
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, runner *tasks.Runner, logger *zap.Logger) {
	ran, err := runner.RunDue(ctx)
	if err != nil {
		logger.Error("error processing scheduled tasks", zap.Error(err))
		return
	}
	if ran > 0 {
		logger.Info("processed scheduled tasks", zap.Int("count", ran))
	}
}
