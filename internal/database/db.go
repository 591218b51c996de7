package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storybook-server/internal/config"
)

const (
	connectAttempts   = 5
	connectRetryDelay = 3 * time.Second
	pingTimeout       = 10 * time.Second
)

// Connect создает пул соединений и ждет, пока база станет доступна,
// делая несколько попыток.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.MaxConnIdleTime = cfg.IdleTimeout

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err := tryConnect(ctx, poolCfg)
		if err == nil {
			logger.Info("Connected to PostgreSQL", zap.String("dsn", cfg.MaskedDSN()), zap.Int("attempt", attempt))
			return pool, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to PostgreSQL",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.Duration("retry_delay", connectRetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, lastErr)
}

func tryConnect(ctx context.Context, poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(pingCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	return pool, nil
}
