package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/buildtall-systems/orderflow/internal/config"
	"github.com/buildtall-systems/orderflow/internal/db"
	"github.com/buildtall-systems/orderflow/internal/memstore"
	"github.com/buildtall-systems/orderflow/internal/order"
	"github.com/buildtall-systems/orderflow/internal/pgstore"
	"github.com/spf13/cobra"
)

// openStore opens the configured store with its schema migrated. The returned
// close func is never nil.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (order.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store, orders are lost on exit")
		return memstore.New(), noop, nil

	case config.DriverPostgres:
		s, err := pgstore.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, noop, err
		}
		if err := s.Migrate(ctx, logger); err != nil {
			_ = s.Close()
			return nil, noop, fmt.Errorf("migrating postgres: %w", err)
		}
		logger.Debug("database ready", slog.String("driver", cfg.Database.Driver))
		return s, s.Close, nil

	default:
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("opening database: %w", err)
		}
		if err := database.Migrate(); err != nil {
			_ = database.Close()
			return nil, noop, fmt.Errorf("running migrations: %w", err)
		}
		logger.Debug("database ready", slog.String("driver", cfg.Database.Driver), slog.String("path", cfg.Database.Path))
		return database, database.Close, nil
	}
}

func newService(cfg *config.Config, store order.Store, logger *slog.Logger) *order.Service {
	opts := []order.ServiceOption{order.WithLogger(logger)}
	if cfg.Lifecycle.LockPerOrder {
		opts = append(opts, order.WithLocking())
	}
	if cfg.Lifecycle.RetryAttempts > 0 {
		opts = append(opts, order.WithRetry(cfg.Lifecycle.RetryAttempts))
	}
	return order.NewService(store, opts...)
}

// withService loads config, opens the store and hands a ready service to fn.
func withService(cmd *cobra.Command, fn func(context.Context, *order.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg.Log, cmd.ErrOrStderr())

	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	return fn(ctx, newService(cfg, store, logger))
}
