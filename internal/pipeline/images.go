package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/model"
	"storybook-server/internal/service"
)

// ImageOutcome - результат иллюстрирования одной страницы.
type ImageOutcome struct {
	ImageURI string
	Approved bool
	// Chained - иллюстрация построена от иллюстрации предыдущей страницы.
	Chained bool
}

// ImageSynthesizer иллюстрирует страницы по порядку, передавая предыдущую
// иллюстрацию как опорную для следующей.
type ImageSynthesizer struct {
	generator     service.ImageGenerator
	verifier      service.ImageVerifier
	imageTimeout  time.Duration
	verifyTimeout time.Duration
	logger        *zap.Logger
}

func NewImageSynthesizer(generator service.ImageGenerator, verifier service.ImageVerifier, imageTimeout, verifyTimeout time.Duration, logger *zap.Logger) *ImageSynthesizer {
	return &ImageSynthesizer{
		generator:     generator,
		verifier:      verifier,
		imageTimeout:  imageTimeout,
		verifyTimeout: verifyTimeout,
		logger:        logger.Named("ImageSynthesizer"),
	}
}

// Synthesize иллюстрирует страницы строго последовательно. Сбой страницы
// обрывает цепочку: следующая страница рисуется заново, со стилем.
func (s *ImageSynthesizer) Synthesize(ctx context.Context, pages []model.PageDraft, age int, styleHint string) []ImageOutcome {
	outcomes := make([]ImageOutcome, len(pages))
	for i, page := range pages {
		previous := chainReference(i, func(j int) string { return outcomes[j].ImageURI })
		outcomes[i] = s.SynthesizePage(ctx, page, previous, age, styleHint)
	}
	return outcomes
}

// chainReference возвращает опорную иллюстрацию для страницы i: иллюстрацию
// страницы i-1 или пустую строку для первой страницы и после сбоя.
func chainReference(i int, imageOf func(int) string) string {
	if i <= 0 {
		return ""
	}
	return imageOf(i - 1)
}

// SynthesizePage рисует одну страницу. previousImage - иллюстрация предыдущей
// страницы или пустая строка. Никогда не паникует и не возвращает ошибку.
func (s *ImageSynthesizer) SynthesizePage(ctx context.Context, page model.PageDraft, previousImage string, age int, styleHint string) ImageOutcome {
	log := s.logger.With(zap.Int("page", page.Index), zap.Bool("chained", previousImage != ""))

	prompt := service.ImagePrompt{Text: NewScenePrompt(page.Text, age, styleHint)}
	if previousImage != "" {
		prompt = service.ImagePrompt{Text: ContinuationPrompt(page.Text, age), ReferenceImage: previousImage}
	}

	var out service.ImageOutput
	callCtx, cancel := withTimeout(ctx, s.imageTimeout)
	err := guard(func() error {
		var genErr error
		out, genErr = s.generator.GenerateImage(callCtx, prompt)
		return genErr
	})
	cancel()

	if err != nil {
		log.Warn("Image generation failed, page left without illustration", zap.Error(err))
		pageOutcomes.WithLabelValues("image", outcomeLabel(callCtx, err)).Inc()
		return ImageOutcome{}
	}
	if verr := model.ValidateDataURI(out.DataURI, model.MediaFamilyImage); verr != nil {
		log.Warn("Image generator returned no usable image", zap.Error(verr), zap.String("note", out.Note))
		pageOutcomes.WithLabelValues("image", "unavailable").Inc()
		return ImageOutcome{}
	}

	outcome := ImageOutcome{ImageURI: out.DataURI, Chained: previousImage != ""}
	outcome.Approved = s.verify(ctx, log, out.DataURI, page.Text, age, styleHint)
	pageOutcomes.WithLabelValues("image", "ok").Inc()
	log.Info("Page illustrated", zap.Bool("approved", outcome.Approved))
	return outcome
}

// verify закрыт по умолчанию: ошибка проверки означает "не подходит".
func (s *ImageSynthesizer) verify(ctx context.Context, log *zap.Logger, imageURI, pageText string, age int, styleHint string) bool {
	var approved bool
	callCtx, cancel := withTimeout(ctx, s.verifyTimeout)
	defer cancel()
	err := guard(func() error {
		var verr error
		approved, verr = s.verifier.VerifyImageFit(callCtx, imageURI, pageText, age, styleHint)
		return verr
	})
	if err != nil {
		log.Warn("Image verification failed, marking as not approved", zap.Error(err))
		return false
	}
	return approved
}

func outcomeLabel(callCtx context.Context, err error) string {
	if timedOut(callCtx, err) {
		return "timeout"
	}
	return "failed"
}

// NewScenePrompt - промпт иллюстрации без опорного изображения. Подсказка
// стиля ставится в начало.
func NewScenePrompt(pageText string, age int, styleHint string) string {
	var b strings.Builder
	if hint := strings.TrimSpace(styleHint); hint != "" {
		b.WriteString(strings.TrimRight(hint, ". "))
		b.WriteString(". ")
	}
	fmt.Fprintf(&b, "A children's storybook illustration depicting the following scene: %q. ", pageText)
	fmt.Fprintf(&b, "The style should be colorful, whimsical, and appealing to a %d-year-old child. ", age)
	b.WriteString("IMPORTANT: DO NOT include any text, letters, or words in the image. The image should be a scene illustration only.")
	return b.String()
}

// ContinuationPrompt - промпт иллюстрации, продолжающей предыдущую. Стиль
// задает опорное изображение, подсказка стиля не добавляется.
func ContinuationPrompt(pageText string, age int) string {
	return fmt.Sprintf("Using the previous image as a starting point, continue the story by illustrating the following scene: %q. "+
		"The style should remain colorful, whimsical, and appealing to a %d-year-old child, consistent with the previous image. "+
		"IMPORTANT: DO NOT include any text, letters, or words in the new image. "+
		"The image should be a scene illustration only, evolving from the previous one.", pageText, age)
}
