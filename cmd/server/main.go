package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"serviceportal/internal/config"
	"serviceportal/internal/handlers"
	authMiddleware "serviceportal/internal/middleware"
	"serviceportal/internal/services"
	"serviceportal/internal/store"
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

	// Initialize Database
	db, err := services.InitDB(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := services.AutoMigrate(db); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}
	st := store.NewGormStore(db)

	ctx := context.Background()

	// Redis backs pricing cache, payment locks, request numbers and the
	// tracking rate limit. Without it each falls back to its degraded mode.
	var (
		cache   services.Cache
		locker  services.Locker
		seq     services.Sequencer
		limiter authMiddleware.Limiter
	)
	redisCache, err := services.NewRedisCache(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, running without cache, locks and rate limiting", zap.Error(err))
	} else {
		defer redisCache.Close()
		cache, locker, seq, limiter = redisCache, redisCache, redisCache, redisCache
	}

	// Initialize Firebase
	var (
		verifier authMiddleware.SessionVerifier
		issuer   handlers.SessionIssuer
	)
	bucket := ""
	if cfg.StorageDriver == config.StorageDriverFirebase {
		bucket = cfg.StorageBucket
	}
	firebaseApp, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath, bucket)
	if err != nil {
		logger.Warn("firebase initialization failed, auth will not work until valid credentials are provided", zap.Error(err))
	} else if authClient, err := services.InitFirebaseAuth(ctx, firebaseApp); err != nil {
		logger.Warn("firebase auth unavailable", zap.Error(err))
	} else {
		verifier, issuer = authClient, authClient
	}

	var storage services.ObjectStorage
	switch cfg.StorageDriver {
	case config.StorageDriverOSS:
		oss, err := services.NewOSSStorage(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret, cfg.StorageBucket, cfg.OSSPublicBaseURL)
		if err != nil {
			logger.Fatal("failed to initialize OSS storage", zap.Error(err))
		}
		storage = oss
	default:
		if firebaseApp == nil {
			logger.Fatal("firebase storage selected but firebase is not initialized")
		}
		fs, err := services.NewFirebaseStorage(ctx, firebaseApp, cfg.StorageBucket)
		if err != nil {
			logger.Fatal("failed to initialize firebase storage", zap.Error(err))
		}
		storage = fs
	}

	gateway := services.NewMidtransService(cfg.MidtransServerKey, cfg.MidtransClientKey, cfg.MidtransIsProduction)

	pricing := services.NewPricingService(st, cache, cfg.PricingCacheTTL, logger)
	requests := services.NewRequestService(st, pricing, seq, logger)
	payments := services.NewPaymentService(st, gateway, pricing, locker, services.PaymentConfig{
		Currency:  cfg.PaymentCurrency,
		LockTTL:   cfg.PaymentLockTTL,
		FinishURL: cfg.AppURL + "/payments/finish",
	}, logger)
	reviews := services.NewReviewService(st, pricing, logger)
	progress := services.NewProgressService(st)
	accounts := services.NewAccountService(st)
	documents := services.NewDocumentService(st, storage, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = authMiddleware.CustomErrorHandler(logger)

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("12M"))

	e.Static("/static", "web/static")

	handlers.Routes{
		Auth: handlers.NewAuthHandler(issuer, accounts, handlers.LoginConfig{
			FirebaseAPIKey:     cfg.FirebaseAPIKey,
			FirebaseAuthDomain: cfg.FirebaseAuthDomain,
			FirebaseProjectID:  cfg.FirebaseProjectID,
			SecureCookies:      cfg.IsProduction(),
		}, logger),
		Dashboard:      handlers.NewDashboardHandler(requests, accounts),
		Requests:       handlers.NewRequestHandler(requests, progress, documents),
		Payments:       handlers.NewPaymentHandler(payments, requests, logger),
		Public:         handlers.NewPublicHandler(progress, pricing, cfg.PaymentCurrency),
		Admin:          handlers.NewAdminHandler(requests, reviews, pricing),
		Users:          handlers.NewUserHandler(accounts),
		Preferences:    handlers.NewUserPreferenceHandler(accounts),
		Verifier:       verifier,
		Accounts:       accounts,
		Limiter:        limiter,
		TrackingLimit:  cfg.TrackingRateLimit,
		TrackingWindow: cfg.TrackingRateWindow,
	}.Register(e)

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
