package checkpoint

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures a checkpoint backend.
type Config struct {
	// Backend is one of "memory", "redis", "postgres", "sqlite".
	Backend   string `yaml:"backend"`
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// NewStore creates the configured checkpoint backend.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:      cfg.RedisAddr,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		}, logger)
	case "postgres":
		return NewPostgresStore(cfg.DSN, logger)
	case "sqlite":
		return NewSQLiteStore(cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
