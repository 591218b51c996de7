package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/config"
)

// ErrUnparseableVerdict - модель проверки ответила не true/false.
var ErrUnparseableVerdict = errors.New("verifier answer is neither true nor false")

// StoryFlows реализует текстовые возможности конвейера поверх AIClient:
// переписывание истории, сценарий диалога и проверку иллюстрации.
type StoryFlows struct {
	client      AIClient
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.Logger
}

var (
	_ StoryRewriter     = (*StoryFlows)(nil)
	_ DialogueGenerator = (*StoryFlows)(nil)
	_ ImageVerifier     = (*StoryFlows)(nil)
)

func NewStoryFlows(client AIClient, cfg config.AIConfig, logger *zap.Logger) *StoryFlows {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &StoryFlows{
		client:      client,
		maxAttempts: attempts,
		baseDelay:   cfg.BaseRetryDelay,
		logger:      logger.Named("StoryFlows"),
	}
}

func floatPtr(f float64) *float64 { return &f }

// RewriteStory повторяет запрос с экспоненциальной задержкой. Ошибка бюджета
// токенов и отмена контекста не повторяются.
func (f *StoryFlows) RewriteStory(ctx context.Context, text string, age int, learningThemes string) (string, error) {
	prompt := buildRewritePrompt(text, age, learningThemes)
	params := GenerationParams{Temperature: floatPtr(0.7)}

	var lastErr error
	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		out, _, err := f.client.GenerateText(ctx, opRewrite, rewriteSystemPrompt, prompt, params)
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		lastErr = err
		if errors.Is(err, ErrPromptTooLong) || ctx.Err() != nil || attempt == f.maxAttempts {
			break
		}

		delay := f.backoff(attempt)
		f.logger.Warn("Story rewrite failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.maxAttempts),
			zap.Duration("retry_delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

func (f *StoryFlows) backoff(attempt int) time.Duration {
	if f.baseDelay <= 0 {
		return 0
	}
	delay := f.baseDelay * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int64N(int64(f.baseDelay)/2 + 1))
	return delay + jitter
}

func (f *StoryFlows) TransformDialogue(ctx context.Context, pageText string, age int) (string, error) {
	out, _, err := f.client.GenerateText(ctx, opDialogue, dialogueSystemPrompt, buildDialoguePrompt(pageText, age),
		GenerationParams{Temperature: floatPtr(0.5)})
	if err != nil {
		return "", err
	}
	return stripCodeFence(out), nil
}

func (f *StoryFlows) VerifyImageFit(ctx context.Context, imageURI, pageText string, age int, styleHint string) (bool, error) {
	out, _, err := f.client.GenerateTextWithImages(ctx, opVerify, verifySystemPrompt,
		buildVerifyPrompt(pageText, age, styleHint), []string{imageURI},
		GenerationParams{Temperature: floatPtr(0)})
	if err != nil {
		return false, err
	}
	return parseVerdict(out)
}

func parseVerdict(answer string) (bool, error) {
	word := strings.ToLower(strings.Trim(strings.TrimSpace(answer), "\"'`.!*"))
	if i := strings.IndexAny(word, " \n\t,"); i > 0 {
		word = word[:i]
	}
	switch word {
	case "true", "yes":
		return true, nil
	case "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnparseableVerdict, answer)
}

// stripCodeFence снимает обрамление ```...```, которое модели иногда добавляют.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
