// Command migrate applies or reverts the postgres schema and can seed a new
// tenant with its first admin account.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/logging"
	pgstore "github.com/larrybwosi/multitenancy-sub007/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	direction := flag.String("direction", pgstore.MigrateUp, "migration direction: up or down")
	seedOrg := flag.String("seed-org", "", "organization id to seed after migrating")
	seedAdmin := flag.String("seed-admin", "admin", "username of the seeded admin")
	seedTimezone := flag.String("seed-timezone", "UTC", "IANA timezone of the seeded organization")
	flag.Parse()

	cfg := config.Load()
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, Development: cfg.IsDevelopment()})
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	if err := pgstore.Migrate(cfg.DatabaseURL, *direction); err != nil {
		logger.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
	}
	version, dirty, err := pgstore.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("read migration version", zap.Error(err))
	}
	logger.Info("migrations done", zap.String("direction", *direction), zap.Uint("version", version), zap.Bool("dirty", dirty))

	if *seedOrg == "" || *direction != pgstore.MigrateUp {
		return
	}

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		logger.Fatal("SEED_ADMIN_PASSWORD is required to seed a tenant")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL, pgstore.Options{Logger: logger})
	if err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer func() { _ = pg.Close() }()

	created, err := pg.SeedTenant(ctx, pgstore.TenantSeed{
		OrganizationID: *seedOrg,
		Timezone:       *seedTimezone,
		AdminUsername:  *seedAdmin,
		AdminPassword:  password,
	})
	if err != nil {
		logger.Fatal("seed tenant", zap.String("organization_id", *seedOrg), zap.Error(err))
	}
	logger.Info("tenant seed finished", zap.String("organization_id", *seedOrg), zap.Bool("created", created))
}
