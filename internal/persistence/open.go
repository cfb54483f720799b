package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/config"
)

// Open builds the configured backend, bounded by the storage timeout.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		store = NewMemoryStore()
	case config.BackendSQLite:
		store, err = NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite storage", zap.String("path", cfg.Storage.SQLitePath))
	case config.BackendPostgres:
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		store = NewPostgresStore(pg)
	case config.BackendRedis:
		store = NewRedisStore(NewRedis(cfg.Redis, logger), cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	return WithTimeout(store, cfg.Storage.Timeout()), nil
}
