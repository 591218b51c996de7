package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/model"
	"storybook-server/internal/service"
)

// ReasonNoImage - причина пропуска анимации для страницы без иллюстрации.
const ReasonNoImage = "page has no image"

// AnimationStage оживляет иллюстрации страниц.
type AnimationStage struct {
	animator service.Animator
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAnimationStage(animator service.Animator, timeout time.Duration, logger *zap.Logger) *AnimationStage {
	return &AnimationStage{animator: animator, timeout: timeout, logger: logger.Named("AnimationStage")}
}

// Animate с тем же контрактом изоляции, что и озвучка. Страница без
// иллюстрации пропускается без вызова аниматора.
func (a *AnimationStage) Animate(ctx context.Context, imageURI, pageText string, age int) model.MediaResult {
	if imageURI == "" {
		return model.MediaUnavailableBecause(ReasonNoImage)
	}

	var uri string
	callCtx, cancel := withTimeout(ctx, a.timeout)
	err := guard(func() error {
		var animErr error
		uri, animErr = a.animator.SynthesizeAnimation(callCtx, imageURI, pageText, age)
		return animErr
	})
	result := classifyMedia(callCtx, uri, err, model.MediaFamilyAnimation)
	cancel()

	pageOutcomes.WithLabelValues("animation", string(result.Kind)).Inc()
	if !result.OK() {
		a.logger.Warn("Animation produced no media",
			zap.String("outcome", string(result.Kind)),
			zap.String("reason", result.Reason))
	}
	return result
}
