package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/cache"
	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/service"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/store/memory"
	pgstore "github.com/larrybwosi/multitenancy-sub007/internal/store/postgres"
)

// Deps holds the process-wide collaborators shared by the server and the
// one-shot commands.
type Deps struct {
	Repo    store.Repository
	Locker  cache.Locker
	Service *service.Service
	closers []func() error
}

// Open wires the repository, the sweep locker and the service from cfg.
// DATABASE_URL selects postgres; without it the seeded in-memory store is
// used. An unreachable redis degrades to the no-op locker.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Deps, error) {
	deps := &Deps{closers: make([]func() error, 0, 2)}

	if cfg.DatabaseURL != "" {
		if cfg.MigrationsAuto {
			if err := pgstore.Migrate(cfg.DatabaseURL, pgstore.MigrateUp); err != nil {
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied")
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, pgstore.Options{
			MaxOpenConns: cfg.DBMaxOpenConns,
			MaxIdleConns: cfg.DBMaxIdleConns,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback: %w", err)
		}
		deps.Repo = pg
		deps.closers = append(deps.closers, pg.Close)
		logger.Info("repository ready", zap.String("backend", "postgres"))
	} else {
		deps.Repo = memory.NewSeeded(logger)
		logger.Info("repository ready", zap.String("backend", "memory"))
	}

	deps.Locker = cache.NoopLocker{}
	if cfg.RedisAddr != "" {
		redisLocker := cache.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisLocker.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, sweep runs without a distributed lock", zap.Error(err))
			_ = redisLocker.Close()
		} else {
			deps.Locker = redisLocker
			deps.closers = append(deps.closers, redisLocker.Close)
			logger.Info("sweep locker ready", zap.String("backend", "redis"))
		}
	}

	deps.Service = service.New(deps.Repo, deps.Locker, logger, service.Options{
		NegativeTotalPolicy: cfg.NegativeTotalPolicy,
		SweepPageSize:       cfg.SweepPageSize,
	})
	return deps, nil
}

// Close releases connections in reverse order of acquisition.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
