package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"vendbot/internal/bootstrap"
	"vendbot/internal/config"
	cronpkg "vendbot/internal/cron"
	"vendbot/internal/dedup"
	"vendbot/internal/fraud"
	"vendbot/internal/handler/api"
	"vendbot/internal/payment"
	"vendbot/internal/purchase"
	"vendbot/internal/repository"
	"vendbot/internal/router"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database, cfg.Server.Env)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.MigrateAndSeed(db); err != nil {
		logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
	}
	store := repository.NewGormStore(db)

	// --- Receipt fingerprint deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := dedup.NewReceiptDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		48*time.Hour,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for receipt dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Core services ---
	detector := fraud.NewDetector(store, fraud.Thresholds{
		MaxDailyTransactions: cfg.Fraud.MaxDailyTransactions,
		MaxDailyAmount:       cfg.Fraud.MaxDailyAmount,
	})
	processor := payment.NewProcessor(store, detector, payment.Config{
		FraudDetectionEnabled: cfg.Fraud.Enabled,
		AutoApproveReceipts:   cfg.Payment.AutoApproveReceipts,
		AutoApproveMaxScore:   cfg.Payment.AutoApproveMaxScore,
	}, logger).WithDeduper(deduper)
	orchestrator := purchase.NewOrchestrator(store, purchase.Config{
		DefaultPanelMode: cfg.Panel.DefaultMode,
		ReferralPercent:  cfg.Referral.Percent,
		ReferralFixed:    cfg.Referral.Fixed,
	}, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	deps := &api.Deps{
		Store:        store,
		Processor:    processor,
		Orchestrator: orchestrator,
		Detector:     detector,
		Logger:       logger,
	}
	router.Setup(e, deps, cfg.API.Key)

	// --- Cron Scheduler ---
	scheduler := cronpkg.New(orchestrator, logger)
	scheduler.Start()

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting vendbot server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
