package status

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storybook-server/internal/config"
)

const (
	redisConnectAttempts = 10
	redisRetryDelay      = 3 * time.Second
)

// Connect создает клиент Redis и дожидается успешного PING.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}

	var lastErr error
	for attempt := 1; attempt <= redisConnectAttempts; attempt++ {
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			logger.Info("Connected to Redis", zap.String("address", cfg.Addr), zap.Int("attempt", attempt))
			return client, nil
		}
		_ = client.Close()
		lastErr = err
		logger.Warn("Failed to ping Redis, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", redisConnectAttempts),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisRetryDelay):
		}
	}
	return nil, fmt.Errorf("redis unreachable after %d attempts: %w", redisConnectAttempts, lastErr)
}
