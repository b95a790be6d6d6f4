package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/app"
	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/httpapi"
	"github.com/larrybwosi/multitenancy-sub007/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := app.Open(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, deps.Repo, logger)
	api := httpapi.New(deps.Service, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if cfg.SweepIntervalSeconds <= 0 {
			logger.Info("auto checkout scheduler disabled")
			return
		}
		logger.Info("auto checkout scheduler started", zap.Int("interval_seconds", cfg.SweepIntervalSeconds))
		deps.Service.RunAutoCheckoutScheduler(runCtx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	}()

	go func() {
		logger.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	stopScheduler()
	<-schedulerDone

	if err := deps.Close(); err != nil {
		logger.Error("close error", zap.Error(err))
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" && !cfg.IsDevelopment() {
		return fmt.Errorf("ALLOWED_ORIGIN=* is only allowed when APP_ENV=development")
	}
	return nil
}
