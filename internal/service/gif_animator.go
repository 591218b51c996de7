package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"time"

	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

// ErrAnimationFailed - не удалось построить анимацию.
var ErrAnimationFailed = errors.New("animation synthesis failed")

const (
	defaultAnimationFrames = 12
	defaultAnimationSize   = 256
	maxZoom                = 0.12
)

// GIFAnimator строит из иллюстрации короткую зацикленную анимацию
// "мягкого приближения": кадры приближаются к центру и возвращаются назад.
type GIFAnimator struct {
	frames int
	size   int
	logger *zap.Logger
}

var _ Animator = (*GIFAnimator)(nil)

func NewGIFAnimator(cfg config.PipelineConfig, logger *zap.Logger) *GIFAnimator {
	frames := cfg.AnimationFrames
	if frames < 2 {
		frames = defaultAnimationFrames
	}
	size := cfg.AnimationSize
	if size < 32 {
		size = defaultAnimationSize
	}
	return &GIFAnimator{frames: frames, size: size, logger: logger.Named("GIFAnimator")}
}

func (a *GIFAnimator) SynthesizeAnimation(ctx context.Context, imageURI, _ string, age int) (string, error) {
	startTime := time.Now()
	if err := model.ValidateDataURI(imageURI, model.MediaFamilyImage); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnimationFailed, err)
	}
	_, data, err := model.DecodeDataURI(imageURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAnimationFailed, err)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: decode image: %v", ErrAnimationFailed, err)
	}

	delay := 8
	if age <= 5 {
		delay = 12
	}

	anim := &gif.GIF{LoopCount: 0}
	forward := make([]*image.Paletted, 0, a.frames)
	for i := 0; i < a.frames; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		zoom := 1 + maxZoom*float64(i)/float64(a.frames-1)
		forward = append(forward, a.renderFrame(src, zoom))
	}
	// туда и обратно, без повтора крайних кадров
	sequence := append([]*image.Paletted{}, forward...)
	for i := len(forward) - 2; i > 0; i-- {
		sequence = append(sequence, forward[i])
	}
	for _, frame := range sequence {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return "", fmt.Errorf("%w: encode gif: %v", ErrAnimationFailed, err)
	}

	duration := time.Since(startTime)
	observeRequest("gif", opAnimation, "success", duration.Seconds())
	mediaBytes.WithLabelValues("animation").Observe(float64(buf.Len()))
	a.logger.Debug("Animation rendered",
		zap.Int("frames", len(anim.Image)),
		zap.Int("size_bytes", buf.Len()),
		zap.Duration("duration", duration))
	return model.EncodeDataURI("image/gif", buf.Bytes()), nil
}

// renderFrame вырезает центральный квадрат с учетом приближения и масштабирует
// его до размера кадра методом ближайшего соседа.
func (a *GIFAnimator) renderFrame(src image.Image, zoom float64) *image.Paletted {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	crop := int(float64(side) / zoom)
	if crop < 1 {
		crop = 1
	}
	x0 := b.Min.X + (b.Dx()-crop)/2
	y0 := b.Min.Y + (b.Dy()-crop)/2

	rect := image.Rect(0, 0, a.size, a.size)
	scaled := image.NewRGBA(rect)
	for y := 0; y < a.size; y++ {
		sy := y0 + y*crop/a.size
		for x := 0; x < a.size; x++ {
			sx := x0 + x*crop/a.size
			scaled.Set(x, y, src.At(sx, sy))
		}
	}

	frame := image.NewPaletted(rect, palette.Plan9)
	draw.FloydSteinberg.Draw(frame, rect, scaled, image.Point{})
	return frame
}
