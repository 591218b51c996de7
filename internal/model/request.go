package model

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// VoiceProfile - голос озвучки.
type VoiceProfile string

const (
	VoiceMale   VoiceProfile = "male"
	VoiceFemale VoiceProfile = "female"
)

const (
	MinChildAge     = 1
	MaxChildAge     = 12
	MinPromptLength = 10
	MaxPromptLength = 2000
)

// GenerationRequest - входные данные одного прогона конвейера.
// После старта прогона не изменяется.
type GenerationRequest struct {
	UserID         string       `json:"userId" validate:"required"`
	Title          string       `json:"title,omitempty" validate:"max=200"`
	OriginalPrompt string       `json:"originalPrompt" validate:"prompt_length"`
	ChildAge       int          `json:"childAge" validate:"min=1,max=12"`
	VoiceProfile   VoiceProfile `json:"voiceProfile" validate:"oneof=male female"`
	StyleHint      string       `json:"styleHint,omitempty" validate:"max=2000"`
	VisualStyleID  string       `json:"visualStyleId,omitempty" validate:"omitempty,visual_style"`
	LearningTagIDs []string     `json:"learningTagIds,omitempty" validate:"max=7,dive,learning_tag"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("prompt_length", func(fl validator.FieldLevel) bool {
			n := len([]rune(strings.TrimSpace(fl.Field().String())))
			return n >= MinPromptLength && n <= MaxPromptLength
		})
		_ = validate.RegisterValidation("visual_style", func(fl validator.FieldLevel) bool {
			_, ok := FindVisualStyle(fl.Field().String())
			return ok
		})
		_ = validate.RegisterValidation("learning_tag", func(fl validator.FieldLevel) bool {
			_, ok := FindLearningTag(fl.Field().String())
			return ok
		})
	})
	return validate
}

// Validate проверяет запрос. Ошибка оборачивает ErrInvalidInput и перечисляет поля.
func (r GenerationRequest) Validate() error {
	err := requestValidator().Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
}

// ResolvedStyleHint возвращает явную подсказку стиля, а если ее нет - описание
// выбранного пресета.
func (r GenerationRequest) ResolvedStyleHint() string {
	if hint := strings.TrimSpace(r.StyleHint); hint != "" {
		return hint
	}
	if style, ok := FindVisualStyle(r.VisualStyleID); ok {
		return style.Description
	}
	return ""
}

// LearningThemes возвращает текст учебных тем для промпта.
func (r GenerationRequest) LearningThemes() string {
	return LearningThemesPromptText(r.LearningTagIDs)
}
