package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"io"
	"strings"
	"testing"

	openaigo "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

type fakeOpenAI struct {
	mock.Mock
}

func (f *fakeOpenAI) CreateImage(ctx context.Context, request openaigo.ImageRequest) (openaigo.ImageResponse, error) {
	args := f.Called(ctx, request)
	return args.Get(0).(openaigo.ImageResponse), args.Error(1)
}

func (f *fakeOpenAI) CreateEditImage(ctx context.Context, request openaigo.ImageEditRequest) (openaigo.ImageResponse, error) {
	args := f.Called(ctx, request)
	return args.Get(0).(openaigo.ImageResponse), args.Error(1)
}

func (f *fakeOpenAI) CreateSpeech(ctx context.Context, request openaigo.CreateSpeechRequest) (openaigo.RawResponse, error) {
	args := f.Called(ctx, request)
	return args.Get(0).(openaigo.RawResponse), args.Error(1)
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var testAIConfig = config.AIConfig{ImageModel: "dall-e-2", ImageSize: "512x512", SpeechModel: "tts-1"}

func TestOpenAIImageGenerator_GenerateImage(t *testing.T) {
	pngBytes := testPNG(t, 8, 8)
	b64 := base64.StdEncoding.EncodeToString(pngBytes)

	t.Run("new scene uses create", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateImage", mock.Anything, mock.MatchedBy(func(r openaigo.ImageRequest) bool {
			return r.Prompt == "a fox" && r.ResponseFormat == openaigo.CreateImageResponseFormatB64JSON && r.Size == "512x512"
		})).Return(openaigo.ImageResponse{Data: []openaigo.ImageResponseDataInner{{B64JSON: b64, RevisedPrompt: "a red fox"}}}, nil).Once()

		gen := newImageGenerator(api, testAIConfig, zap.NewNop())
		out, err := gen.GenerateImage(context.Background(), ImagePrompt{Text: "a fox"})
		require.NoError(t, err)
		assert.NoError(t, model.ValidateDataURI(out.DataURI, model.MediaFamilyImage))
		assert.Equal(t, "a red fox", out.Note)
		api.AssertExpectations(t)
	})

	t.Run("reference uses edit", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateEditImage", mock.Anything, mock.MatchedBy(func(r openaigo.ImageEditRequest) bool {
			if r.Image == nil || r.Prompt != "continue" {
				return false
			}
			data, err := io.ReadAll(r.Image)
			return err == nil && bytes.Equal(data, pngBytes)
		})).Return(openaigo.ImageResponse{Data: []openaigo.ImageResponseDataInner{{B64JSON: b64}}}, nil).Once()

		gen := newImageGenerator(api, testAIConfig, zap.NewNop())
		out, err := gen.GenerateImage(context.Background(), ImagePrompt{
			Text:           "continue",
			ReferenceImage: model.EncodeDataURI("image/png", pngBytes),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, out.DataURI)
		api.AssertExpectations(t)
	})

	t.Run("empty data is not an error", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateImage", mock.Anything, mock.Anything).Return(openaigo.ImageResponse{}, nil).Once()

		out, err := newImageGenerator(api, testAIConfig, zap.NewNop()).GenerateImage(context.Background(), ImagePrompt{Text: "x"})
		require.NoError(t, err)
		assert.Empty(t, out.DataURI)
	})

	t.Run("api error is wrapped", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateImage", mock.Anything, mock.Anything).Return(openaigo.ImageResponse{}, errors.New("429")).Once()

		_, err := newImageGenerator(api, testAIConfig, zap.NewNop()).GenerateImage(context.Background(), ImagePrompt{Text: "x"})
		assert.ErrorIs(t, err, ErrImageGenerationFailed)
	})

	t.Run("invalid reference fails before the call", func(t *testing.T) {
		api := &fakeOpenAI{}
		_, err := newImageGenerator(api, testAIConfig, zap.NewNop()).GenerateImage(context.Background(), ImagePrompt{
			Text:           "x",
			ReferenceImage: "https://example.com/a.png",
		})
		assert.ErrorIs(t, err, ErrImageGenerationFailed)
		api.AssertNotCalled(t, "CreateEditImage", mock.Anything, mock.Anything)
	})
}

func TestOpenAISpeechSynthesizer(t *testing.T) {
	t.Run("wav data uri with voice by profile", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateSpeech", mock.Anything, mock.MatchedBy(func(r openaigo.CreateSpeechRequest) bool {
			return r.Voice == openaigo.VoiceOnyx && r.ResponseFormat == openaigo.SpeechResponseFormatWav &&
				r.Input == "The fox smiled.\nFox says: Hello!" && r.Speed == 0.85
		})).Return(openaigo.RawResponse{ReadCloser: io.NopCloser(strings.NewReader("RIFFdata"))}, nil).Once()

		s := newSpeechSynthesizer(api, testAIConfig, zap.NewNop())
		uri, err := s.SynthesizeSpeech(context.Background(), "Narrator: The fox smiled.\nFox: Hello!", model.VoiceMale, 4)
		require.NoError(t, err)
		assert.Equal(t, model.EncodeDataURI("audio/wav", []byte("RIFFdata")), uri)
		api.AssertExpectations(t)
	})

	t.Run("empty audio is soft", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateSpeech", mock.Anything, mock.MatchedBy(func(r openaigo.CreateSpeechRequest) bool {
			return r.Voice == openaigo.VoiceNova
		})).Return(openaigo.RawResponse{ReadCloser: io.NopCloser(strings.NewReader(""))}, nil).Once()

		uri, err := newSpeechSynthesizer(api, testAIConfig, zap.NewNop()).
			SynthesizeSpeech(context.Background(), "Narrator: Hi.", model.VoiceFemale, 9)
		require.NoError(t, err)
		assert.Empty(t, uri)
	})

	t.Run("call error is hard", func(t *testing.T) {
		api := &fakeOpenAI{}
		api.On("CreateSpeech", mock.Anything, mock.Anything).Return(openaigo.RawResponse{}, errors.New("reset")).Once()

		_, err := newSpeechSynthesizer(api, testAIConfig, zap.NewNop()).
			SynthesizeSpeech(context.Background(), "Narrator: Hi.", model.VoiceFemale, 9)
		assert.ErrorIs(t, err, ErrSpeechSynthesisFailed)
	})
}

func TestNarrationText(t *testing.T) {
	script := "Narrator: It was late.\n\n  Bunny: Good night!  \nno speaker here\nCharacter:"
	assert.Equal(t, "It was late.\nBunny says: Good night!\nno speaker here\nCharacter:", NarrationText(script))
	assert.Empty(t, NarrationText("  \n "))
}

func TestGIFAnimator(t *testing.T) {
	animator := NewGIFAnimator(config.PipelineConfig{AnimationFrames: 4, AnimationSize: 32}, zap.NewNop())
	source := model.EncodeDataURI("image/png", testPNG(t, 40, 30))

	uri, err := animator.SynthesizeAnimation(context.Background(), source, "A fox.", 5)
	require.NoError(t, err)
	require.NoError(t, model.ValidateDataURI(uri, model.MediaFamilyAnimation))

	_, data, err := model.DecodeDataURI(uri)
	require.NoError(t, err)
	decoded, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, decoded.Image, 6, "forward frames plus the way back without endpoints")
	assert.Equal(t, 12, decoded.Delay[0])
	assert.Equal(t, 32, decoded.Config.Width)

	_, err = animator.SynthesizeAnimation(context.Background(), "data:image/png;base64,placeholder", "x", 5)
	assert.ErrorIs(t, err, ErrAnimationFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = animator.SynthesizeAnimation(ctx, source, "x", 5)
	assert.ErrorIs(t, err, context.Canceled)
}
