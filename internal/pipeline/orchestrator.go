// Package pipeline собирает книгу из запроса: переписывание истории,
// разбиение на страницы, иллюстрации, сценарий и озвучка, анимация.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
	"storybook-server/internal/segmenter"
	"storybook-server/internal/service"
)

// Capabilities - внешние сервисы, которые вызывает конвейер.
type Capabilities struct {
	Rewriter service.StoryRewriter
	Images   service.ImageGenerator
	Verifier service.ImageVerifier
	Dialogue service.DialogueGenerator
	Speech   service.SpeechSynthesizer
	Animator service.Animator
}

// RunSink принимает завершенный и замороженный прогон (обычно сохраняет книгу).
type RunSink interface {
	AcceptRun(ctx context.Context, run *model.PipelineRun) error
}

// Orchestrator ведет прогон по этапам. Каждый прогон изолирован: общего
// изменяемого состояния между прогонами нет, кроме пула планировщика.
type Orchestrator struct {
	rewriter       service.StoryRewriter
	rewriteTimeout time.Duration
	images         *ImageSynthesizer
	dialogue       *DialogueTransformer
	voice          *VoiceSynthesizer
	animation      *AnimationStage
	scheduler      *Scheduler
	reporter       ProgressReporter
	sink           RunSink
	now            func() time.Time
	logger         *zap.Logger
}

func NewOrchestrator(cfg config.PipelineConfig, caps Capabilities, scheduler *Scheduler, reporter ProgressReporter, sink RunSink, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		rewriter:       caps.Rewriter,
		rewriteTimeout: cfg.RewriteTimeout,
		images:         NewImageSynthesizer(caps.Images, caps.Verifier, cfg.ImageTimeout, cfg.VerifyTimeout, logger),
		dialogue:       NewDialogueTransformer(caps.Dialogue, cfg.DialogueTimeout, logger),
		voice:          NewVoiceSynthesizer(caps.Speech, cfg.VoiceTimeout, logger),
		animation:      NewAnimationStage(caps.Animator, cfg.AnimationTimeout, logger),
		scheduler:      scheduler,
		reporter:       reporter,
		sink:           sink,
		now:            time.Now,
		logger:         logger.Named("Orchestrator"),
	}
}

// Run проводит прогон от Initial до Complete. Ошибка переписывания переводит
// прогон в Failed и возвращается как ErrStoryRewriteFailed вместе с прогоном.
// Если ctx завершен перед очередным этапом, прогон останавливается с ошибкой
// контекста и никуда не передается.
func (o *Orchestrator) Run(ctx context.Context, runID string, req model.GenerationRequest) (*model.PipelineRun, error) {
	run := model.NewPipelineRun(runID, req, o.now())
	log := o.logger.With(zap.String("run_id", runID), zap.String("user_id", req.UserID))
	progress := newProgressTracker(ctx, run, o.reporter)

	if err := ctx.Err(); err != nil {
		return run, err
	}
	progress.set(progressRewriteStarted)

	stageStart := time.Now()
	text, err := o.rewrite(ctx, req)
	stageDuration.WithLabelValues(model.StageStoryRewritten.String()).Observe(time.Since(stageStart).Seconds())
	if err != nil {
		log.Error("Story rewrite failed, run aborted", zap.Error(err))
		if failErr := run.Fail(err.Error(), o.now()); failErr != nil {
			log.Error("Failed to mark run as failed", zap.Error(failErr))
		}
		// Failed сообщается с уже достигнутым прогрессом.
		progress.set(progressRewriteStarted)
		runsTotal.WithLabelValues(model.StageFailed.String()).Inc()
		return run, fmt.Errorf("%w: %v", model.ErrStoryRewriteFailed, err)
	}
	run.RewrittenText = text
	if err := run.Advance(model.StageStoryRewritten); err != nil {
		return run, err
	}
	progress.set(progressRewritten)
	log.Info("Story rewritten", zap.Int("length", len(text)))

	stages := []struct {
		next model.Stage
		exec func(context.Context, *model.PipelineRun, *progressTracker) error
		end  int
	}{
		{next: model.StagePagesImaged, exec: o.runImages, end: progressImaged},
		{next: model.StagePagesVoiced, exec: o.runVoice, end: progressVoiced},
		{next: model.StagePagesAnimated, exec: o.runAnimation, end: progressAnimated},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			log.Warn("Run cancelled between stages", zap.Stringer("next_stage", st.next), zap.Error(err))
			return run, err
		}
		stageStart := time.Now()
		if err := st.exec(ctx, run, progress); err != nil {
			log.Warn("Stage interrupted", zap.Stringer("stage", st.next), zap.Error(err))
			return run, err
		}
		if err := run.Advance(st.next); err != nil {
			return run, err
		}
		progress.set(st.end)
		stageDuration.WithLabelValues(st.next.String()).Observe(time.Since(stageStart).Seconds())
		log.Info("Stage completed", zap.Stringer("stage", st.next), zap.Duration("duration", time.Since(stageStart)))
	}

	if err := ctx.Err(); err != nil {
		return run, err
	}
	if err := run.Advance(model.StageComplete); err != nil {
		return run, err
	}
	progress.set(progressAnimated)
	runsTotal.WithLabelValues(model.StageComplete.String()).Inc()

	if err := run.HandOff(o.now()); err != nil {
		return run, err
	}
	if o.sink != nil {
		if err := o.sink.AcceptRun(ctx, run); err != nil {
			log.Error("Run sink rejected completed run", zap.Error(err))
			return run, fmt.Errorf("hand-off failed: %w", err)
		}
	}
	log.Info("Run completed", zap.Int("pages", len(run.Pages)))
	return run, nil
}

var errRewriteRejected = errors.New("rewrite output rejected")

func (o *Orchestrator) rewrite(ctx context.Context, req model.GenerationRequest) (string, error) {
	var text string
	callCtx, cancel := withTimeout(ctx, o.rewriteTimeout)
	defer cancel()
	err := guard(func() error {
		var rerr error
		text, rerr = o.rewriter.RewriteStory(callCtx, req.OriginalPrompt, req.ChildAge, req.LearningThemes())
		return rerr
	})
	if err != nil {
		return "", err
	}
	return text, validateRewrite(text)
}

// validateRewrite отклоняет пустой ответ, текст ошибки модели и заглушки.
func validateRewrite(text string) error {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: empty output", errRewriteRejected)
	case strings.HasPrefix(trimmed, "Error:"):
		return fmt.Errorf("%w: model returned an error message", errRewriteRejected)
	case model.IsPlaceholder(trimmed):
		return fmt.Errorf("%w: placeholder output", errRewriteRejected)
	}
	return nil
}

// runImages: страницы сегментируются один раз, задачи image[i] -> image[i+1]
// выполняются по цепочке.
func (o *Orchestrator) runImages(ctx context.Context, run *model.PipelineRun, progress *progressTracker) error {
	req := run.Request
	drafts := segmenter.Segment(run.RewrittenText, req.ChildAge)
	if err := run.SetPages(drafts); err != nil {
		return err
	}

	styleHint := req.ResolvedStyleHint()
	stageBand := progress.band(progressRewritten, progressImaged, len(run.Pages))
	graph := NewGraph()
	var previous []TaskID
	for i := range run.Pages {
		_, err := graph.Add(TaskImage, run.Pages[i].Index, func(ctx context.Context) {
			defer stageBand.pageDone()
			page := &run.Pages[i]
			previousImage := chainReference(i, func(j int) string { return run.Pages[j].ImageURI })
			draft := model.PageDraft{Index: page.Index, Text: page.Text}
			outcome := o.images.SynthesizePage(ctx, draft, previousImage, req.ChildAge, styleHint)
			page.ImageURI = outcome.ImageURI
			page.ImageApproved = outcome.Approved
			page.ImageChained = outcome.Chained
			page.Flags.ImagePending = false
		}, previous...)
		if err != nil {
			return err
		}
		previous = []TaskID{{Kind: TaskImage, Page: run.Pages[i].Index}}
	}
	return o.scheduler.Run(ctx, graph)
}

// runVoice: сценарий и озвучка страниц независимы друг от друга.
func (o *Orchestrator) runVoice(ctx context.Context, run *model.PipelineRun, progress *progressTracker) error {
	req := run.Request
	stageBand := progress.band(progressImaged, progressVoiced, len(run.Pages))
	graph := NewGraph()
	for i := range run.Pages {
		if _, err := graph.Add(TaskVoice, run.Pages[i].Index, func(ctx context.Context) {
			defer stageBand.pageDone()
			page := &run.Pages[i]
			page.DialogueScript = o.dialogue.ToDialogue(ctx, page.Text, req.ChildAge)
			page.Voice = o.voice.SynthesizeVoice(ctx, page.DialogueScript, req.VoiceProfile, req.ChildAge)
			if page.Voice.OK() {
				page.VoiceURI = page.Voice.Value
			}
			page.Flags.VoicePending = false
		}); err != nil {
			return err
		}
	}
	return o.scheduler.Run(ctx, graph)
}

// runAnimation: страницы без иллюстрации пропускаются сразу.
func (o *Orchestrator) runAnimation(ctx context.Context, run *model.PipelineRun, progress *progressTracker) error {
	req := run.Request
	stageBand := progress.band(progressVoiced, progressAnimated, len(run.Pages))
	graph := NewGraph()
	for i := range run.Pages {
		page := &run.Pages[i]
		if !page.HasImage() {
			page.Animation = model.MediaUnavailableBecause(ReasonNoImage)
			page.Flags.AnimationPending = false
			stageBand.pageDone()
			continue
		}
		if _, err := graph.Add(TaskAnimation, page.Index, func(ctx context.Context) {
			defer stageBand.pageDone()
			page.Animation = o.animation.Animate(ctx, page.ImageURI, page.Text, req.ChildAge)
			if page.Animation.OK() {
				page.AnimationURI = page.Animation.Value
			}
			page.Flags.AnimationPending = false
		}); err != nil {
			return err
		}
	}
	return o.scheduler.Run(ctx, graph)
}
