package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

// ErrSpeechSynthesisFailed - ошибка вызова синтеза речи.
var ErrSpeechSynthesisFailed = errors.New("speech synthesis failed")

type speechAPI interface {
	CreateSpeech(ctx context.Context, request openaigo.CreateSpeechRequest) (openaigo.RawResponse, error)
}

// OpenAISpeechSynthesizer озвучивает сценарий через Audio Speech API, формат wav.
type OpenAISpeechSynthesizer struct {
	api    speechAPI
	model  string
	logger *zap.Logger
}

var _ SpeechSynthesizer = (*OpenAISpeechSynthesizer)(nil)

func NewOpenAISpeechSynthesizer(cfg config.AIConfig, logger *zap.Logger) *OpenAISpeechSynthesizer {
	return newSpeechSynthesizer(newOpenAIClient(cfg), cfg, logger)
}

func newSpeechSynthesizer(api speechAPI, cfg config.AIConfig, logger *zap.Logger) *OpenAISpeechSynthesizer {
	return &OpenAISpeechSynthesizer{
		api:    api,
		model:  cfg.SpeechModel,
		logger: logger.Named("SpeechSynthesizer"),
	}
}

func (s *OpenAISpeechSynthesizer) SynthesizeSpeech(ctx context.Context, script string, voice model.VoiceProfile, age int) (string, error) {
	input := NarrationText(script)
	if input == "" {
		return "", nil
	}
	log := s.logger.With(zap.String("model", s.model), zap.String("voice", string(voice)))

	startTime := time.Now()
	resp, err := s.api.CreateSpeech(ctx, openaigo.CreateSpeechRequest{
		Model:          openaigo.SpeechModel(s.model),
		Input:          input,
		Voice:          speechVoice(voice),
		ResponseFormat: openaigo.SpeechResponseFormatWav,
		Speed:          speechSpeed(age),
	})
	if err != nil {
		observeRequest(s.model, opSpeech, "error", time.Since(startTime).Seconds())
		log.Warn("Speech request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrSpeechSynthesisFailed, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	duration := time.Since(startTime)
	if err != nil {
		observeRequest(s.model, opSpeech, "error_read", duration.Seconds())
		return "", fmt.Errorf("%w: reading audio: %v", ErrSpeechSynthesisFailed, err)
	}
	if len(audio) == 0 {
		observeRequest(s.model, opSpeech, "error_empty_response", duration.Seconds())
		log.Warn("Speech API returned empty audio")
		return "", nil
	}

	observeRequest(s.model, opSpeech, "success", duration.Seconds())
	mediaBytes.WithLabelValues("audio").Observe(float64(len(audio)))
	log.Info("Speech synthesized", zap.Duration("duration", duration), zap.Int("size_bytes", len(audio)))
	return model.EncodeDataURI("audio/wav", audio), nil
}

func speechVoice(voice model.VoiceProfile) openaigo.SpeechVoice {
	if voice == model.VoiceMale {
		return openaigo.VoiceOnyx
	}
	return openaigo.VoiceNova
}

// Младшим детям читаем медленнее.
func speechSpeed(age int) float64 {
	switch {
	case age <= 4:
		return 0.85
	case age <= 7:
		return 0.95
	default:
		return 1.0
	}
}

// NarrationText превращает сценарий "Speaker: line" в текст для чтения вслух:
// реплики рассказчика читаются как есть, реплики персонажей предваряются именем.
func NarrationText(script string) string {
	var lines []string
	for _, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		speaker, text, found := strings.Cut(line, ":")
		text = strings.TrimSpace(text)
		switch {
		case !found || text == "":
			lines = append(lines, line)
		case strings.EqualFold(strings.TrimSpace(speaker), "narrator"):
			lines = append(lines, text)
		default:
			lines = append(lines, fmt.Sprintf("%s says: %s", strings.TrimSpace(speaker), text))
		}
	}
	return strings.Join(lines, "\n")
}
