package model

import "time"

// GenerationTaskPayload - сообщение в очереди задач генерации книги.
type GenerationTaskPayload struct {
	TaskID      string            `json:"taskId"`
	StorybookID string            `json:"storybookId"`
	Request     GenerationRequest `json:"request"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// NotificationStatus - итог обработки задачи.
type NotificationStatus string

const (
	NotificationStatusSuccess NotificationStatus = "success"
	NotificationStatusError   NotificationStatus = "error"
)

// NotificationPayload публикуется воркером после завершения задачи.
type NotificationPayload struct {
	TaskID       string             `json:"taskId"`
	StorybookID  string             `json:"storybookId"`
	UserID       string             `json:"userId"`
	Status       NotificationStatus `json:"status"`
	Stage        Stage              `json:"stage"`
	PageCount    int                `json:"pageCount,omitempty"`
	ErrorDetails string             `json:"errorDetails,omitempty"`
}

// ProgressUpdate - снимок состояния прогона для клиентов.
type ProgressUpdate struct {
	StorybookID string          `json:"storybookId"`
	UserID      string          `json:"userId"`
	Status      StorybookStatus `json:"status"`
	Stage       Stage           `json:"stage"`
	Progress    int             `json:"progress"`
	Error       string          `json:"error,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Terminal сообщает, что дальнейших обновлений не будет.
func (u ProgressUpdate) Terminal() bool {
	return u.Status == StorybookStatusCompleted || u.Status == StorybookStatusFailed
}
