package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
	"storybook-server/internal/repository"
)

const saveAttemptTimeout = 30 * time.Second

// StorybookSink сохраняет книгу из завершенного прогона с повторами.
type StorybookSink struct {
	repo        repository.StorybookRepository
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

func NewStorybookSink(repo repository.StorybookRepository, cfg config.WorkerConfig, logger *zap.Logger) *StorybookSink {
	return &StorybookSink{
		repo:        repo,
		maxAttempts: max(cfg.DBMaxAttempts, 1),
		baseDelay:   cfg.DBBaseRetryDelay,
		logger:      logger.Named("StorybookSink"),
	}
}

func (s *StorybookSink) AcceptRun(ctx context.Context, run *model.PipelineRun) error {
	sb := model.StorybookFromRun(run.ID, run)
	log := s.logger.With(zap.String("storybook_id", sb.ID))

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, saveAttemptTimeout)
		lastErr = s.repo.Save(attemptCtx, sb)
		cancel()
		saveAttempts.Inc()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, model.ErrInvalidInput) {
			return lastErr
		}
		log.Warn("Failed to save storybook",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(lastErr))
		if attempt == s.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(s.baseDelay, attempt)):
		}
	}
	return fmt.Errorf("storybook not saved after %d attempts: %w", s.maxAttempts, lastErr)
}

// backoff - экспоненциальная задержка с разбросом ±10%.
func backoff(base time.Duration, attempt int) time.Duration {
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	jitter := delay * 0.1
	delay += jitter * (rand.Float64()*2 - 1)
	return time.Duration(delay)
}
