// Command sweep runs a single auto checkout pass and prints its report.
// It is meant for cron-style deployments that disable the in-process
// scheduler with SWEEP_INTERVAL_SECONDS=0.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/app"
	"github.com/larrybwosi/multitenancy-sub007/internal/config"
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	report, err := deps.Service.RunAutoCheckoutSweep(ctx)
	if err != nil {
		logger.Error("sweep failed", zap.Error(err))
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(report)

	if report.Failures > 0 {
		os.Exit(2)
	}
}
