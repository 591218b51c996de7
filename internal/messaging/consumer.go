package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

// TaskHandler обрабатывает одну задачу генерации. Ошибка означает, что
// задачу нельзя подтвердить, и сообщение уходит в DLQ.
type TaskHandler interface {
	Handle(ctx context.Context, payload model.GenerationTaskPayload) error
}

var errMalformedTask = errors.New("malformed task payload")

const reconnectDelay = 5 * time.Second

// Consumer читает очередь задач. При обрыве соединения переподключается,
// пока не отменен контекст.
type Consumer struct {
	cfg     config.RabbitMQConfig
	handler TaskHandler
	logger  *zap.Logger
}

func NewConsumer(cfg config.RabbitMQConfig, handler TaskHandler, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, handler: handler, logger: logger.Named("TaskConsumer")}
}

// Run блокируется до отмены ctx. Отмена прерывает задачи в работе, их
// сообщения возвращаются в очередь.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			c.logger.Info("Consumer stopped")
			return nil
		}
		c.logger.Error("Consumer connection lost, reconnecting", zap.Error(err), zap.Duration("delay", reconnectDelay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := Dial(ctx, c.cfg.URL, c.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := DeclareTopology(ch, c.cfg); err != nil {
		return err
	}
	prefetch := max(c.cfg.PrefetchCount, 1)
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.Consume(c.cfg.TaskQueue.Name, c.cfg.ConsumerName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	c.logger.Info("Waiting for generation tasks",
		zap.String("queue", c.cfg.TaskQueue.Name),
		zap.Int("prefetch", prefetch))

	var wg sync.WaitGroup
	defer wg.Wait()
	slots := make(chan struct{}, prefetch)
	for {
		select {
		case <-ctx.Done():
			_ = ch.Cancel(c.cfg.ConsumerName, false)
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("channel closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			slots <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-slots }()
				c.dispatch(ctx, d)
			}()
		}
	}
}

// dispatch разбирает сообщение и подтверждает или отклоняет его.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	log := c.logger.With(zap.Uint64("delivery_tag", d.DeliveryTag), zap.String("message_id", d.MessageId))
	tasksReceived.Inc()

	payload, err := decodeTask(d.Body)
	if err != nil {
		log.Error("Rejecting malformed task (nack, no requeue)", zap.Error(err))
		tasksFailed.WithLabelValues("deserialization").Inc()
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
		return
	}
	log = log.With(zap.String("task_id", payload.TaskID), zap.String("storybook_id", payload.StorybookID))

	if err := c.handler.Handle(ctx, payload); err != nil {
		if ctx.Err() != nil {
			log.Warn("Task interrupted by shutdown, requeueing", zap.Error(err))
			if nackErr := d.Nack(false, true); nackErr != nil {
				log.Error("Failed to requeue message", zap.Error(nackErr))
			}
			return
		}
		log.Error("Task handling failed (nack, no requeue)", zap.Error(err))
		tasksFailed.WithLabelValues("handler").Inc()
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("Failed to ack message", zap.Error(ackErr))
		return
	}
	log.Info("Task acknowledged")
}

func decodeTask(body []byte) (model.GenerationTaskPayload, error) {
	var payload model.GenerationTaskPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", errMalformedTask, err)
	}
	if payload.TaskID == "" || payload.StorybookID == "" {
		return payload, fmt.Errorf("%w: taskId and storybookId are required", errMalformedTask)
	}
	return payload, nil
}
