package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

// Publisher публикует задачи генерации и уведомления о результатах.
// Канал AMQP не потокобезопасен, поэтому публикации сериализованы, а
// закрытый канал открывается заново при следующей публикации.
type Publisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     *amqp.Channel
	cfg    config.RabbitMQConfig
	appID  string
	logger *zap.Logger
}

func NewPublisher(conn *amqp.Connection, cfg config.RabbitMQConfig, appID string, logger *zap.Logger) (*Publisher, error) {
	p := &Publisher{conn: conn, cfg: cfg, appID: appID, logger: logger.Named("Publisher")}
	if err := p.ensureChannel(); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureChannel вызывается под p.mu.
func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.cfg.URL)
		if err != nil {
			return fmt.Errorf("failed to reconnect to rabbitmq: %w", err)
		}
		p.conn = conn
		p.logger.Info("Publisher reconnected to RabbitMQ")
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareTopology(ch, p.cfg); err != nil {
		_ = ch.Close()
		return err
	}
	p.ch = ch
	return nil
}

func (p *Publisher) publish(ctx context.Context, queue, messageID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", messageID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureChannel(); err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		AppId:        p.appID,
		MessageId:    messageID,
	})
	if err != nil {
		p.logger.Error("Failed to publish message", zap.String("queue", queue), zap.String("message_id", messageID), zap.Error(err))
		return fmt.Errorf("failed to publish message %s: %w", messageID, err)
	}
	return nil
}

// PublishTask ставит задачу генерации в очередь.
func (p *Publisher) PublishTask(ctx context.Context, payload model.GenerationTaskPayload) error {
	if err := p.publish(ctx, p.cfg.TaskQueue.Name, payload.TaskID, payload); err != nil {
		return err
	}
	p.logger.Info("Generation task published",
		zap.String("task_id", payload.TaskID),
		zap.String("storybook_id", payload.StorybookID))
	return nil
}

// Notify публикует итог обработки задачи.
func (p *Publisher) Notify(ctx context.Context, payload model.NotificationPayload) error {
	if err := p.publish(ctx, p.cfg.ResultQueueName, payload.TaskID+"-result", payload); err != nil {
		return err
	}
	p.logger.Info("Result notification published",
		zap.String("task_id", payload.TaskID),
		zap.String("status", string(payload.Status)))
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch.Close()
	}
	return nil
}
