package pipeline

import (
	"context"
	"sync"

	"storybook-server/internal/model"
)

// ProgressReporter получает этап и прогресс прогона. Значения прогресса,
// переданные одному прогону, не убывают.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, runID string, stage model.Stage, percent int)
}

// ProgressReporterFunc адаптирует функцию к ProgressReporter.
type ProgressReporterFunc func(ctx context.Context, runID string, stage model.Stage, percent int)

func (f ProgressReporterFunc) ReportProgress(ctx context.Context, runID string, stage model.Stage, percent int) {
	f(ctx, runID, stage, percent)
}

// Границы прогресса по этапам.
const (
	progressRewriteStarted = 10
	progressRewritten      = 25
	progressImaged         = 50
	progressVoiced         = 75
	progressAnimated       = 100
)

// progressTracker поднимает прогресс прогона и сообщает о нем. Отчеты
// сериализованы, поэтому репортер видит неубывающую последовательность.
type progressTracker struct {
	mu           sync.Mutex
	ctx          context.Context
	run          *model.PipelineRun
	reporter     ProgressReporter
	lastReported int
	lastStage    model.Stage
}

func newProgressTracker(ctx context.Context, run *model.PipelineRun, reporter ProgressReporter) *progressTracker {
	return &progressTracker{ctx: ctx, run: run, reporter: reporter, lastReported: -1}
}

func (p *progressTracker) set(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := p.run.RaiseProgress(percent)
	stage, _ := p.run.Snapshot()
	if current == p.lastReported && stage == p.lastStage {
		return
	}
	p.lastReported = current
	p.lastStage = stage
	if p.reporter != nil {
		p.reporter.ReportProgress(p.ctx, p.run.ID, stage, current)
	}
}

// band распределяет прогресс этапа [from, to] по страницам.
type band struct {
	tracker   *progressTracker
	from, to  int
	total     int
	mu        sync.Mutex
	completed int
}

func (p *progressTracker) band(from, to, total int) *band {
	return &band{tracker: p, from: from, to: to, total: total}
}

// pageDone отмечает завершение одной страницы этапа.
func (b *band) pageDone() {
	b.mu.Lock()
	b.completed++
	completed := b.completed
	b.mu.Unlock()

	percent := b.to
	if b.total > 0 && completed < b.total {
		percent = b.from + (b.to-b.from)*completed/b.total
	}
	b.tracker.set(percent)
}
