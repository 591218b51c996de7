package model

import (
	"fmt"
	"sync"
	"time"
)

// PipelineRun - агрегат одного прогона. Изменяется только оркестратором
// до передачи в хранилище; после HandOff любые изменения запрещены.
type PipelineRun struct {
	ID            string            `json:"id"`
	Request       GenerationRequest `json:"request"`
	RewrittenText string            `json:"rewrittenText,omitempty"`
	Pages         []PageArtifact    `json:"pages"`
	Stage         Stage             `json:"stage"`
	Progress      int               `json:"progress"`
	FailureReason string            `json:"failureReason,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`

	mu        sync.Mutex
	handedOff bool
}

func NewPipelineRun(id string, req GenerationRequest, now time.Time) *PipelineRun {
	return &PipelineRun{
		ID:        id,
		Request:   req,
		Stage:     StageInitial,
		StartedAt: now,
	}
}

// Advance переводит прогон на следующий этап.
func (r *PipelineRun) Advance(next Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handedOff {
		return ErrRunHandedOff
	}
	if !r.Stage.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStageTransition, r.Stage, next)
	}
	r.Stage = next
	return nil
}

// Fail переводит прогон в StageFailed с причиной.
func (r *PipelineRun) Fail(reason string, now time.Time) error {
	if err := r.Advance(StageFailed); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FailureReason = reason
	r.CompletedAt = &now
	return nil
}

// SetPages фиксирует список страниц. Допускается один раз, на этапе StoryRewritten.
func (r *PipelineRun) SetPages(drafts []PageDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handedOff {
		return ErrRunHandedOff
	}
	if r.Stage != StageStoryRewritten || r.Pages != nil {
		return fmt.Errorf("%w: pages are fixed once segmented", ErrInvalidStageTransition)
	}
	r.Pages = make([]PageArtifact, len(drafts))
	for i, d := range drafts {
		r.Pages[i] = NewPageArtifact(d)
	}
	return nil
}

// RaiseProgress увеличивает прогресс; меньшие значения игнорируются.
// Возвращает актуальное значение.
func (r *PipelineRun) RaiseProgress(percent int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if percent > 100 {
		percent = 100
	}
	if percent > r.Progress && !r.handedOff {
		r.Progress = percent
	}
	return r.Progress
}

// Snapshot возвращает текущие этап и прогресс.
func (r *PipelineRun) Snapshot() (Stage, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Stage, r.Progress
}

// HandOff замораживает прогон. Разрешено только на этапе Complete и только один раз.
func (r *PipelineRun) HandOff(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handedOff {
		return ErrRunHandedOff
	}
	if r.Stage != StageComplete {
		return fmt.Errorf("%w: hand-off requires stage %s, got %s", ErrInvalidStageTransition, StageComplete, r.Stage)
	}
	r.CompletedAt = &now
	r.handedOff = true
	return nil
}

func (r *PipelineRun) HandedOff() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handedOff
}
