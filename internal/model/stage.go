package model

import (
	"encoding/json"
	"fmt"
)

// Stage - этап конвейера генерации. Значения упорядочены: этап только растет.
type Stage int

const (
	StageInitial Stage = iota
	StageStoryRewritten
	StagePagesImaged
	StagePagesVoiced
	StagePagesAnimated
	StageComplete
	// StageFailed - терминальное состояние, достижимое только из StageInitial
	// (переписывание истории не изолируется по страницам).
	StageFailed
)

var stageNames = map[Stage]string{
	StageInitial:        "initial",
	StageStoryRewritten: "story_rewritten",
	StagePagesImaged:    "pages_imaged",
	StagePagesVoiced:    "pages_voiced",
	StagePagesAnimated:  "pages_animated",
	StageComplete:       "complete",
	StageFailed:         "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// IsTerminal сообщает, завершен ли прогон (успешно или нет).
func (s Stage) IsTerminal() bool {
	return s == StageComplete || s == StageFailed
}

// Next возвращает следующий этап в фиксированном порядке.
func (s Stage) Next() (Stage, bool) {
	if s >= StageInitial && s < StageComplete {
		return s + 1, true
	}
	return s, false
}

// CanAdvanceTo проверяет допустимость перехода: только на непосредственно
// следующий этап, либо в Failed из Initial.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if next == StageFailed {
		return s == StageInitial
	}
	n, ok := s.Next()
	return ok && n == next
}

// ParseStage разбирает строковое имя этапа.
func ParseStage(name string) (Stage, error) {
	for st, n := range stageNames {
		if n == name {
			return st, nil
		}
	}
	return StageInitial, fmt.Errorf("%w: unknown stage %q", ErrInvalidInput, name)
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
