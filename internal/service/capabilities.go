package service

import (
	"context"

	"storybook-server/internal/model"
)

// StoryRewriter переписывает исходную историю под возраст ребенка.
type StoryRewriter interface {
	RewriteStory(ctx context.Context, text string, age int, learningThemes string) (string, error)
}

// ImagePrompt - запрос иллюстрации. ReferenceImage (data URI) задает
// предыдущую иллюстрацию, от которой нужно продолжить.
type ImagePrompt struct {
	Text           string
	ReferenceImage string
}

// ImageOutput - ответ генератора. Note содержит служебный комментарий модели
// (например, переписанный промпт).
type ImageOutput struct {
	DataURI string
	Note    string
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt ImagePrompt) (ImageOutput, error)
}

// ImageVerifier оценивает, подходит ли иллюстрация к тексту страницы.
type ImageVerifier interface {
	VerifyImageFit(ctx context.Context, imageURI, pageText string, age int, styleHint string) (bool, error)
}

type DialogueGenerator interface {
	TransformDialogue(ctx context.Context, pageText string, age int) (string, error)
}

// SpeechSynthesizer озвучивает сценарий страницы. Пустой результат без ошибки
// означает, что аудио не получено.
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, script string, voice model.VoiceProfile, age int) (string, error)
}

type Animator interface {
	SynthesizeAnimation(ctx context.Context, imageURI, pageText string, age int) (string, error)
}
