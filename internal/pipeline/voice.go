package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/model"
	"storybook-server/internal/service"
)

// VoiceSynthesizer озвучивает сценарий страницы.
type VoiceSynthesizer struct {
	synthesizer service.SpeechSynthesizer
	timeout     time.Duration
	logger      *zap.Logger
}

func NewVoiceSynthesizer(synthesizer service.SpeechSynthesizer, timeout time.Duration, logger *zap.Logger) *VoiceSynthesizer {
	return &VoiceSynthesizer{synthesizer: synthesizer, timeout: timeout, logger: logger.Named("VoiceSynthesizer")}
}

// SynthesizeVoice возвращает ok с аудио, unavailable если аудио не получено
// (в том числе по таймауту или вместо него пришла заглушка) и failed, если
// вызов завершился ошибкой.
func (v *VoiceSynthesizer) SynthesizeVoice(ctx context.Context, script string, voice model.VoiceProfile, age int) model.MediaResult {
	var uri string
	callCtx, cancel := withTimeout(ctx, v.timeout)
	err := guard(func() error {
		var synthErr error
		uri, synthErr = v.synthesizer.SynthesizeSpeech(callCtx, script, voice, age)
		return synthErr
	})
	result := classifyMedia(callCtx, uri, err, model.MediaFamilyAudio)
	cancel()

	pageOutcomes.WithLabelValues("voice", string(result.Kind)).Inc()
	if !result.OK() {
		v.logger.Warn("Voice synthesis produced no audio",
			zap.String("outcome", string(result.Kind)),
			zap.String("reason", result.Reason))
	}
	return result
}
