package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"storybook-server/internal/model"
)

// StatusReporter переводит прогресс конвейера в статусы книги. Владелец
// книги берется из задачи, зарегистрированной через Track.
type StatusReporter struct {
	status StatusWriter
	owners sync.Map
	logger *zap.Logger
}

func NewStatusReporter(status StatusWriter, logger *zap.Logger) *StatusReporter {
	return &StatusReporter{status: status, logger: logger.Named("StatusReporter")}
}

func (r *StatusReporter) Track(storybookID, userID string) {
	r.owners.Store(storybookID, userID)
}

func (r *StatusReporter) Untrack(storybookID string) {
	r.owners.Delete(storybookID)
}

// ReportProgress не завершает книгу: статус completed пишет обработчик
// задачи после сохранения.
func (r *StatusReporter) ReportProgress(ctx context.Context, runID string, stage model.Stage, percent int) {
	userID, _ := r.owners.Load(runID)
	owner, _ := userID.(string)

	status := model.StorybookStatusRunning
	if stage == model.StageFailed {
		status = model.StorybookStatusFailed
	}
	err := r.status.Put(ctx, model.ProgressUpdate{
		StorybookID: runID,
		UserID:      owner,
		Status:      status,
		Stage:       stage,
		Progress:    percent,
	})
	if err != nil {
		r.logger.Warn("Failed to report progress",
			zap.String("storybook_id", runID),
			zap.Stringer("stage", stage),
			zap.Int("progress", percent),
			zap.Error(err))
	}
}
