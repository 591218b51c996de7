// Package worker выполняет задачи генерации книг из очереди.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/model"
)

// Runner проводит один прогон конвейера.
type Runner interface {
	Run(ctx context.Context, runID string, req model.GenerationRequest) (*model.PipelineRun, error)
}

// StatusWriter сохраняет снимок состояния генерации.
type StatusWriter interface {
	Put(ctx context.Context, update model.ProgressUpdate) error
}

// Notifier сообщает об итоге задачи.
type Notifier interface {
	Notify(ctx context.Context, payload model.NotificationPayload) error
}

// Handler ведет задачу от сообщения очереди до уведомления о результате.
type Handler struct {
	runner   Runner
	reporter *StatusReporter
	status   StatusWriter
	notifier Notifier
	logger   *zap.Logger
}

func NewHandler(runner Runner, reporter *StatusReporter, status StatusWriter, notifier Notifier, logger *zap.Logger) *Handler {
	return &Handler{
		runner:   runner,
		reporter: reporter,
		status:   status,
		notifier: notifier,
		logger:   logger.Named("TaskHandler"),
	}
}

// Handle возвращает ошибку только когда сообщение нельзя подтвердить: задачу
// прервала остановка воркера или книгу не удалось сохранить. Неудачная
// генерация завершает задачу штатно, с уведомлением об ошибке.
func (h *Handler) Handle(ctx context.Context, payload model.GenerationTaskPayload) error {
	start := time.Now()
	req := payload.Request
	log := h.logger.With(
		zap.String("task_id", payload.TaskID),
		zap.String("storybook_id", payload.StorybookID),
		zap.String("user_id", req.UserID))
	log.Info("Processing generation task", zap.Int("child_age", req.ChildAge), zap.Int("learning_tags", len(req.LearningTagIDs)))

	if err := req.Validate(); err != nil {
		log.Warn("Task carries invalid request", zap.Error(err))
		h.finish(ctx, log, payload, model.StageInitial, nil, err)
		observeTask(taskStatusInvalid, start)
		return nil
	}

	h.reporter.Track(payload.StorybookID, req.UserID)
	defer h.reporter.Untrack(payload.StorybookID)
	h.putStatus(ctx, log, model.ProgressUpdate{
		StorybookID: payload.StorybookID,
		UserID:      req.UserID,
		Status:      model.StorybookStatusRunning,
		Stage:       model.StageInitial,
	})

	run, err := h.runner.Run(ctx, payload.StorybookID, req)
	switch {
	case ctx.Err() != nil:
		log.Warn("Generation interrupted", zap.Error(err))
		observeTask(taskStatusInterrupted, start)
		if err == nil {
			err = ctx.Err()
		}
		return err
	case errors.Is(err, model.ErrStoryRewriteFailed):
		h.finish(ctx, log, payload, model.StageFailed, run, err)
		observeTask(taskStatusFailed, start)
		return nil
	case err != nil:
		h.finish(ctx, log, payload, stageOf(run), run, err)
		observeTask(taskStatusFailed, start)
		return fmt.Errorf("generation of storybook %s failed: %w", payload.StorybookID, err)
	}

	h.finish(ctx, log, payload, model.StageComplete, run, nil)
	pagesPerBook.Observe(float64(len(run.Pages)))
	observeTask(taskStatusSuccess, start)
	log.Info("Generation task completed", zap.Int("pages", len(run.Pages)), zap.Duration("duration", time.Since(start)))
	return nil
}

// finish пишет итоговый статус и публикует уведомление. cause == nil -
// книга сохранена. Итоговый статус не опускает прогресс ниже достигнутого
// прогоном: run может быть nil, если конвейер не запускался.
func (h *Handler) finish(ctx context.Context, log *zap.Logger, payload model.GenerationTaskPayload, stage model.Stage, run *model.PipelineRun, cause error) {
	update := model.ProgressUpdate{
		StorybookID: payload.StorybookID,
		UserID:      payload.Request.UserID,
		Stage:       stage,
		Progress:    progressOf(run),
	}
	notification := model.NotificationPayload{
		TaskID:      payload.TaskID,
		StorybookID: payload.StorybookID,
		UserID:      payload.Request.UserID,
		Stage:       stage,
	}
	if cause == nil {
		update.Status = model.StorybookStatusCompleted
		update.Progress = 100
		notification.Status = model.NotificationStatusSuccess
		notification.PageCount = len(run.Pages)
	} else {
		log.Error("Generation task failed", zap.Stringer("stage", stage), zap.Error(cause))
		update.Status = model.StorybookStatusFailed
		update.Error = cause.Error()
		notification.Status = model.NotificationStatusError
		notification.ErrorDetails = cause.Error()
	}
	h.putStatus(ctx, log, update)

	if err := h.notifier.Notify(ctx, notification); err != nil {
		log.Error("Failed to publish result notification", zap.Error(err))
	}
}

func (h *Handler) putStatus(ctx context.Context, log *zap.Logger, update model.ProgressUpdate) {
	if err := h.status.Put(ctx, update); err != nil {
		log.Warn("Failed to write generation status", zap.String("status", string(update.Status)), zap.Error(err))
	}
}

func progressOf(run *model.PipelineRun) int {
	if run == nil {
		return 0
	}
	_, progress := run.Snapshot()
	return progress
}

func stageOf(run *model.PipelineRun) model.Stage {
	if run == nil {
		return model.StageInitial
	}
	stage, _ := run.Snapshot()
	return stage
}
