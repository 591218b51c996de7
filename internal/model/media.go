package model

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MediaKind - исход вызова генерации медиа.
type MediaKind string

const (
	// MediaOK - валидный data URI получен.
	MediaOK MediaKind = "ok"
	// MediaUnavailable - мягкий отказ: сервис ответил, но медиа нет (или истек таймаут).
	MediaUnavailable MediaKind = "unavailable"
	// MediaFailed - жесткий отказ: сам вызов завершился ошибкой.
	MediaFailed MediaKind = "failed"
)

// MediaResult - размеченный результат этапа, производящего медиа.
// Value заполнено только для MediaOK, Reason - для остальных исходов.
type MediaResult struct {
	Kind   MediaKind `json:"kind"`
	Value  string    `json:"value,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

func MediaOf(uri string) MediaResult {
	return MediaResult{Kind: MediaOK, Value: uri}
}

func MediaUnavailableBecause(reason string) MediaResult {
	return MediaResult{Kind: MediaUnavailable, Reason: reason}
}

func MediaFailedWith(err error) MediaResult {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return MediaResult{Kind: MediaFailed, Reason: reason}
}

func (r MediaResult) OK() bool {
	return r.Kind == MediaOK && r.Value != ""
}

// Retryable сообщает, имеет ли смысл повторить вызов: мягкие отказы
// (сервис не выдал медиа) повторять бесполезно, жесткие - можно.
func (r MediaResult) Retryable() bool {
	return r.Kind == MediaFailed
}

// Маркер заглушек, которые генераторы возвращают вместо настоящего медиа.
const placeholderMarker = "placeholder"

// Семейства MIME-типов для ValidateDataURI.
const (
	MediaFamilyImage     = "image/"
	MediaFamilyAudio     = "audio/"
	MediaFamilyAnimation = "image/gif"
)

var (
	ErrNotDataURI       = errors.New("value is not a base64 data URI")
	ErrUnexpectedMIME   = errors.New("data URI has unexpected MIME type")
	ErrEmptyPayload     = errors.New("data URI payload is empty")
	ErrPlaceholderMedia = errors.New("data URI is a placeholder sentinel")
	ErrMalformedBase64  = errors.New("data URI payload is not valid base64")
)

// ValidateDataURI проверяет, что uri имеет вид data:<mime>;base64,<payload>,
// mime начинается с family, payload не пуст, декодируется и не является заглушкой.
func ValidateDataURI(uri, family string) error {
	if !strings.HasPrefix(uri, "data:") {
		return ErrNotDataURI
	}
	header, payload, found := strings.Cut(uri, ",")
	if !found || !strings.HasSuffix(header, ";base64") {
		return ErrNotDataURI
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if family != "" && !strings.HasPrefix(mime, family) {
		return fmt.Errorf("%w: %q", ErrUnexpectedMIME, mime)
	}
	if payload == "" {
		return ErrEmptyPayload
	}
	if strings.Contains(strings.ToLower(payload), placeholderMarker) {
		return ErrPlaceholderMedia
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBase64, err)
	}
	return nil
}

// IsPlaceholder сообщает, что значение целиком является заглушкой: одиночный
// токен вида placeholder-... или data URI с маркером. Обычный текст, где
// встречается это слово, заглушкой не считается.
func IsPlaceholder(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if strings.HasPrefix(v, "data:") {
		return strings.Contains(v, placeholderMarker)
	}
	return strings.HasPrefix(v, placeholderMarker) && !strings.ContainsFunc(v, unicode.IsSpace)
}

// DecodeDataURI возвращает MIME-тип и байты валидного data URI.
func DecodeDataURI(uri string) (string, []byte, error) {
	if err := ValidateDataURI(uri, ""); err != nil {
		return "", nil, err
	}
	header, payload, _ := strings.Cut(uri, ",")
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedBase64, err)
	}
	return mime, data, nil
}

// EncodeDataURI собирает data URI из MIME-типа и байтов.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
