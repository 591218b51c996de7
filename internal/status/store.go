// Package status хранит текущее состояние генерации книг в Redis и
// рассылает обновления подписчикам через pub/sub.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

const keyPrefix = "storybook:status:"

// Store - статусы генерации. Ключ живет StatusTTL с последнего обновления.
type Store struct {
	client        *redis.Client
	ttl           time.Duration
	channelPrefix string
	logger        *zap.Logger
}

func NewStore(client *redis.Client, cfg config.RedisConfig, logger *zap.Logger) *Store {
	return &Store{
		client:        client,
		ttl:           cfg.StatusTTL,
		channelPrefix: cfg.ChannelPrefix,
		logger:        logger.Named("StatusStore"),
	}
}

func (s *Store) key(storybookID string) string {
	return keyPrefix + storybookID
}

func (s *Store) channel(storybookID string) string {
	return s.channelPrefix + storybookID
}

// Put записывает снимок и публикует его в канал книги.
func (s *Store) Put(ctx context.Context, update model.ProgressUpdate) error {
	if update.UpdatedAt.IsZero() {
		update.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal progress update: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(update.StorybookID), data, s.ttl)
	pipe.Publish(ctx, s.channel(update.StorybookID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to store progress update",
			zap.String("storybook_id", update.StorybookID),
			zap.Error(err))
		return fmt.Errorf("failed to store progress update: %w", err)
	}
	s.logger.Debug("Progress update stored",
		zap.String("storybook_id", update.StorybookID),
		zap.String("status", string(update.Status)),
		zap.Stringer("stage", update.Stage),
		zap.Int("progress", update.Progress))
	return nil
}

// Get возвращает последний снимок или model.ErrNotFound.
func (s *Store) Get(ctx context.Context, storybookID string) (*model.ProgressUpdate, error) {
	data, err := s.client.Get(ctx, s.key(storybookID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}
	var update model.ProgressUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("failed to decode progress: %w", err)
	}
	return &update, nil
}

// Subscribe подписывается на обновления книги. Канал закрывается, когда
// отменяется ctx. Сообщения, которые не удалось разобрать, пропускаются.
func (s *Store) Subscribe(ctx context.Context, storybookID string) (<-chan model.ProgressUpdate, error) {
	sub := s.client.Subscribe(ctx, s.channel(storybookID))
	// Receive дожидается подтверждения подписки, иначе ранние сообщения теряются
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to progress: %w", err)
	}

	out := make(chan model.ProgressUpdate)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var update model.ProgressUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
					s.logger.Warn("Skipping malformed progress message", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
