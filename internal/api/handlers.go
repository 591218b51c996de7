// Package api - HTTP API для создания книг и отслеживания генерации.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
	"storybook-server/internal/repository"
)

const defaultPageSize = 20

// TaskPublisher ставит задачу генерации в очередь.
type TaskPublisher interface {
	PublishTask(ctx context.Context, payload model.GenerationTaskPayload) error
}

// StatusStore хранит и раздает статусы генерации.
type StatusStore interface {
	Put(ctx context.Context, update model.ProgressUpdate) error
	Get(ctx context.Context, storybookID string) (*model.ProgressUpdate, error)
	Subscribe(ctx context.Context, storybookID string) (<-chan model.ProgressUpdate, error)
}

// APIError представляет стандартизированный ответ об ошибке.
type APIError struct {
	Message string `json:"message"`
}

type createStorybookRequest struct {
	Title          string             `json:"title"`
	OriginalPrompt string             `json:"originalPrompt"`
	ChildAge       int                `json:"childAge"`
	VoiceProfile   model.VoiceProfile `json:"voiceProfile"`
	StyleHint      string             `json:"styleHint"`
	VisualStyleID  string             `json:"visualStyleId"`
	LearningTagIDs []string           `json:"learningTagIds"`
}

type createStorybookResponse struct {
	StorybookID string `json:"storybookId"`
	TaskID      string `json:"taskId"`
}

type listStorybooksResponse struct {
	Storybooks []*model.Storybook `json:"storybooks"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// StorybookHandler обрабатывает HTTP запросы книг.
type StorybookHandler struct {
	repo        repository.StorybookRepository
	publisher   TaskPublisher
	status      StatusStore
	maxPageSize int
	origins     []string
	now         func() time.Time
	logger      *zap.Logger
}

func NewStorybookHandler(repo repository.StorybookRepository, publisher TaskPublisher, status StatusStore, cfg config.HTTPConfig, logger *zap.Logger) *StorybookHandler {
	return &StorybookHandler{
		repo:        repo,
		publisher:   publisher,
		status:      status,
		maxPageSize: max(cfg.MaxPageSize, 1),
		origins:     cfg.AllowedOrigins,
		now:         time.Now,
		logger:      logger.Named("StorybookHandler"),
	}
}

// RegisterRoutes регистрирует маршруты книг. createLimit может быть nil.
func (h *StorybookHandler) RegisterRoutes(rg *gin.RouterGroup, createLimit gin.HandlerFunc) {
	create := []gin.HandlerFunc{h.createStorybook}
	if createLimit != nil {
		create = append([]gin.HandlerFunc{createLimit}, create...)
	}
	rg.POST("", create...)
	rg.GET("", h.listStorybooks)
	rg.GET("/:id", h.getStorybook)
	rg.GET("/:id/status", h.getStatus)
	rg.GET("/:id/ws", h.streamStatus)
}

// RegisterCatalogRoutes регистрирует справочники учебных тем и стилей.
func RegisterCatalogRoutes(rg *gin.RouterGroup) {
	rg.GET("/learning-tags", func(c *gin.Context) {
		c.JSON(http.StatusOK, model.LearningTags())
	})
	rg.GET("/visual-styles", func(c *gin.Context) {
		c.JSON(http.StatusOK, model.VisualStyles())
	})
}

func (h *StorybookHandler) createStorybook(c *gin.Context) {
	userID := userIDFrom(c)
	var body createStorybookRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req := model.GenerationRequest{
		UserID:         userID,
		Title:          body.Title,
		OriginalPrompt: body.OriginalPrompt,
		ChildAge:       body.ChildAge,
		VoiceProfile:   body.VoiceProfile,
		StyleHint:      body.StyleHint,
		VisualStyleID:  body.VisualStyleID,
		LearningTagIDs: body.LearningTagIDs,
	}
	if err := req.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	payload := model.GenerationTaskPayload{
		TaskID:      uuid.NewString(),
		StorybookID: uuid.NewString(),
		Request:     req,
		CreatedAt:   h.now().UTC(),
	}
	log := h.logger.With(
		zap.String("user_id", userID),
		zap.String("storybook_id", payload.StorybookID),
		zap.String("task_id", payload.TaskID))
	ctx := c.Request.Context()

	queued := model.ProgressUpdate{
		StorybookID: payload.StorybookID,
		UserID:      userID,
		Status:      model.StorybookStatusQueued,
		Stage:       model.StageInitial,
	}
	if err := h.status.Put(ctx, queued); err != nil {
		log.Warn("Failed to store queued status", zap.Error(err))
	}

	if err := h.publisher.PublishTask(ctx, payload); err != nil {
		log.Error("Failed to publish generation task", zap.Error(err))
		queued.Status = model.StorybookStatusFailed
		queued.Error = "task could not be queued"
		if putErr := h.status.Put(ctx, queued); putErr != nil {
			log.Warn("Failed to store failed status", zap.Error(putErr))
		}
		abortWithError(c, http.StatusServiceUnavailable, "generation queue is unavailable")
		return
	}

	log.Info("Storybook generation queued", zap.Int("child_age", req.ChildAge))
	c.JSON(http.StatusAccepted, createStorybookResponse{StorybookID: payload.StorybookID, TaskID: payload.TaskID})
}

func (h *StorybookHandler) listStorybooks(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		abortWithError(c, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit = min(limit, h.maxPageSize)

	books, err := h.repo.ListByUser(c.Request.Context(), userIDFrom(c), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if books == nil {
		books = []*model.Storybook{}
	}
	c.JSON(http.StatusOK, listStorybooksResponse{Storybooks: books, Limit: limit, Offset: offset})
}

func (h *StorybookHandler) getStorybook(c *gin.Context) {
	sb, err := h.repo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	if sb.UserID != userIDFrom(c) {
		h.handleError(c, model.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, sb)
}

func (h *StorybookHandler) getStatus(c *gin.Context) {
	update, err := h.ownedStatus(c.Request.Context(), c.Param("id"), userIDFrom(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

// ownedStatus возвращает статус книги, если она принадлежит пользователю.
func (h *StorybookHandler) ownedStatus(ctx context.Context, storybookID, userID string) (*model.ProgressUpdate, error) {
	update, err := h.status.Get(ctx, storybookID)
	if err != nil {
		return nil, err
	}
	if update.UserID != userID {
		return nil, model.ErrForbidden
	}
	return update, nil
}

// handleError переводит ошибки в HTTP статусы. Чужие книги отдаются как 404.
func (h *StorybookHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrForbidden):
		abortWithError(c, http.StatusNotFound, "storybook not found")
	case errors.Is(err, model.ErrInvalidInput):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "internal server error")
	}
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, APIError{Message: message})
}

func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
