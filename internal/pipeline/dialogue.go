package pipeline

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"storybook-server/internal/service"
)

// NarratorPrefix - метка рассказчика в сценарии.
const NarratorPrefix = "Narrator: "

const maxSpeakerLength = 40

var scriptLine = regexp.MustCompile(`^([^:]+):\s*(\S.*)$`)

// DialogueTransformer превращает текст страницы в сценарий "Speaker: line".
type DialogueTransformer struct {
	generator service.DialogueGenerator
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDialogueTransformer(generator service.DialogueGenerator, timeout time.Duration, logger *zap.Logger) *DialogueTransformer {
	return &DialogueTransformer{generator: generator, timeout: timeout, logger: logger.Named("DialogueTransformer")}
}

// ToDialogue никогда не завершается неудачей: при ошибке, таймауте или
// некорректном ответе возвращается "Narrator: " + текст страницы.
func (d *DialogueTransformer) ToDialogue(ctx context.Context, pageText string, age int) string {
	var script string
	callCtx, cancel := withTimeout(ctx, d.timeout)
	err := guard(func() error {
		var genErr error
		script, genErr = d.generator.TransformDialogue(callCtx, pageText, age)
		return genErr
	})
	cancel()

	switch {
	case err != nil:
		d.logger.Warn("Dialogue transform failed, using narrator fallback", zap.Error(err))
		pageOutcomes.WithLabelValues("dialogue", outcomeLabel(callCtx, err)).Inc()
	case !IsWellFormedScript(script):
		d.logger.Warn("Dialogue script is malformed, using narrator fallback", zap.Int("script_length", len(script)))
		pageOutcomes.WithLabelValues("dialogue", "malformed").Inc()
	default:
		pageOutcomes.WithLabelValues("dialogue", "ok").Inc()
		return strings.TrimSpace(script)
	}
	return FallbackScript(pageText)
}

func FallbackScript(pageText string) string {
	return NarratorPrefix + pageText
}

// IsWellFormedScript: есть хотя бы одна строка, и каждая непустая строка имеет
// вид "Speaker: line", где Speaker не длиннее 40 символов.
func IsWellFormedScript(script string) bool {
	lines := 0
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		m := scriptLine.FindStringSubmatch(line)
		if m == nil {
			return false
		}
		speaker := strings.TrimSpace(m[1])
		if speaker == "" || utf8.RuneCountInString(speaker) > maxSpeakerLength {
			return false
		}
		lines++
	}
	return lines > 0
}
