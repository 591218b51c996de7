package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

// ErrImageGenerationFailed - ошибка при генерации изображения.
var ErrImageGenerationFailed = errors.New("image generation failed")

// imagesAPI - часть клиента go-openai, которую использует генератор.
type imagesAPI interface {
	CreateImage(ctx context.Context, request openaigo.ImageRequest) (openaigo.ImageResponse, error)
	CreateEditImage(ctx context.Context, request openaigo.ImageEditRequest) (openaigo.ImageResponse, error)
}

// OpenAIImageGenerator рисует иллюстрации через Images API. Без опорного
// изображения вызывается генерация, с опорным - редактирование, где опорное
// изображение передается как исходное.
type OpenAIImageGenerator struct {
	api    imagesAPI
	model  string
	size   string
	logger *zap.Logger
}

var _ ImageGenerator = (*OpenAIImageGenerator)(nil)

func NewOpenAIImageGenerator(cfg config.AIConfig, logger *zap.Logger) *OpenAIImageGenerator {
	return newImageGenerator(newOpenAIClient(cfg), cfg, logger)
}

func newImageGenerator(api imagesAPI, cfg config.AIConfig, logger *zap.Logger) *OpenAIImageGenerator {
	return &OpenAIImageGenerator{
		api:    api,
		model:  cfg.ImageModel,
		size:   cfg.ImageSize,
		logger: logger.Named("ImageGenerator"),
	}
}

func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt ImagePrompt) (ImageOutput, error) {
	log := g.logger.With(zap.String("model", g.model), zap.Bool("chained", prompt.ReferenceImage != ""))

	var (
		resp      openaigo.ImageResponse
		err       error
		operation = opImage
	)
	startTime := time.Now()
	if prompt.ReferenceImage == "" {
		resp, err = g.api.CreateImage(ctx, openaigo.ImageRequest{
			Prompt:         prompt.Text,
			Model:          g.model,
			N:              1,
			Size:           g.size,
			ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
		})
	} else {
		operation = opImageEdit
		resp, err = g.editFromReference(ctx, prompt)
	}
	duration := time.Since(startTime)

	if err != nil {
		log.Warn("Image request failed", zap.Duration("duration", duration), zap.Error(err))
		observeRequest(g.model, operation, "error", duration.Seconds())
		return ImageOutput{}, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		log.Warn("Image API returned no data", zap.Duration("duration", duration))
		observeRequest(g.model, operation, "error_empty_response", duration.Seconds())
		return ImageOutput{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		observeRequest(g.model, operation, "error_malformed", duration.Seconds())
		return ImageOutput{}, fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	observeRequest(g.model, operation, "success", duration.Seconds())
	mediaBytes.WithLabelValues("image").Observe(float64(len(raw)))

	log.Info("Image generated", zap.Duration("duration", duration), zap.Int("size_bytes", len(raw)))
	return ImageOutput{
		DataURI: model.EncodeDataURI("image/png", raw),
		Note:    resp.Data[0].RevisedPrompt,
	}, nil
}

// editFromReference сохраняет опорное изображение во временный PNG: Images API
// принимает исходник только файлом.
func (g *OpenAIImageGenerator) editFromReference(ctx context.Context, prompt ImagePrompt) (openaigo.ImageResponse, error) {
	pngBytes, err := referenceAsPNG(prompt.ReferenceImage)
	if err != nil {
		return openaigo.ImageResponse{}, err
	}

	tmp, err := os.CreateTemp("", "storybook-reference-*.png")
	if err != nil {
		return openaigo.ImageResponse{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(pngBytes); err != nil {
		return openaigo.ImageResponse{}, fmt.Errorf("failed to write reference image: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return openaigo.ImageResponse{}, fmt.Errorf("failed to rewind reference image: %w", err)
	}

	return g.api.CreateEditImage(ctx, openaigo.ImageEditRequest{
		Image:          tmp,
		Prompt:         prompt.Text,
		Model:          g.model,
		N:              1,
		Size:           g.size,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
}

func referenceAsPNG(uri string) ([]byte, error) {
	mime, data, err := model.DecodeDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid reference image: %w", err)
	}
	if mime == "image/png" {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode reference image %s: %w", mime, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode reference image: %w", err)
	}
	return buf.Bytes(), nil
}
