package app

import (
	"context"
	"fmt"
	"log/slog"

	"storefront/config"
	"storefront/store"
)

// openStore builds the configured store and the func that releases it.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), noop, nil

	case "redis":
		rs, err := store.NewRedisStore(cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		logger.Info("using redis store", "prefix", cfg.RedisPrefix)
		return rs, rs.Close, nil

	case "file", "":
		fs, err := store.NewFileStore(cfg.Path, logger.With("component", "store"))
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using file store", "path", cfg.Path)
		return fs, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
