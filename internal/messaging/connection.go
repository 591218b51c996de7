// Package messaging - обмен задачами и уведомлениями через RabbitMQ.
package messaging

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storybook-server/internal/config"
)

const (
	dialAttempts   = 5
	dialRetryDelay = 5 * time.Second
	dlqRoutingKey  = "dlq"
)

// Dial подключается к брокеру с несколькими попытками.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*amqp.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp.Dial(url)
		if err == nil {
			logger.Info("Connected to RabbitMQ", zap.Int("attempt", attempt))
			return conn, nil
		}
		lastErr = err
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", dialAttempts),
			zap.Duration("retry_delay", dialRetryDelay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryDelay):
		}
	}
	return nil, fmt.Errorf("rabbitmq unreachable after %d attempts: %w", dialAttempts, lastErr)
}

// DeclareTopology объявляет очередь задач с dead-letter обвязкой и очередь
// результатов. Объявления идемпотентны, их вызывают и API, и воркер.
func DeclareTopology(ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	q := cfg.TaskQueue
	if err := ch.ExchangeDeclare(q.DeadLetterExchange(), "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLX %q: %w", q.DeadLetterExchange(), err)
	}
	if _, err := ch.QueueDeclare(q.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ %q: %w", q.DeadLetterQueue(), err)
	}
	if err := ch.QueueBind(q.DeadLetterQueue(), dlqRoutingKey, q.DeadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("failed to bind DLQ %q: %w", q.DeadLetterQueue(), err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    q.DeadLetterExchange(),
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	if _, err := ch.QueueDeclare(q.Name, q.Durable, q.AutoDelete, q.Exclusive, q.NoWait, args); err != nil {
		return fmt.Errorf("failed to declare task queue %q: %w", q.Name, err)
	}
	if _, err := ch.QueueDeclare(cfg.ResultQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare result queue %q: %w", cfg.ResultQueueName, err)
	}
	return nil
}
