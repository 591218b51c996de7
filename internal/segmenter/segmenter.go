// Package segmenter разбивает переписанную историю на страницы по возрасту ребенка.
package segmenter

import (
	"strings"

	"storybook-server/internal/model"
)

// CharLimit возвращает максимальную длину страницы для возраста.
// Ступенчатая функция, не формула.
func CharLimit(childAge int) int {
	switch {
	case childAge <= 3:
		return 100
	case childAge <= 6:
		return 200
	case childAge <= 9:
		return 300
	default:
		return 400
	}
}

// Segment делит текст на страницы жадно, слева направо. Точка разреза внутри
// окна ищется с конца окна в порядке приоритета: абзац, конец предложения,
// пробел, жесткий разрез по лимиту. Пустые после обрезки страницы отбрасываются.
func Segment(text string, childAge int) []model.PageDraft {
	limit := CharLimit(childAge)
	remaining := []rune(strings.ReplaceAll(text, "\r\n", "\n"))

	var pages []model.PageDraft
	for len(remaining) > 0 {
		split := len(remaining)
		if len(remaining) > limit {
			split = findSplit(remaining, limit)
		}
		// split > 0 всегда, поэтому остаток строго укорачивается на каждой итерации
		page := strings.TrimSpace(string(remaining[:split]))
		remaining = remaining[split:]
		if page == "" {
			continue
		}
		pages = append(pages, model.PageDraft{Index: len(pages) + 1, Text: page})
	}
	return pages
}

func findSplit(text []rune, limit int) int {
	start := min(limit, len(text)-1)

	for i := start; i >= 1; i-- {
		if text[i] == '\n' && text[i-1] == '\n' {
			return i + 1
		}
	}
	for i := start; i >= 1; i-- {
		if text[i] == ' ' && isSentenceEnd(text[i-1]) {
			return i + 1
		}
	}
	for i := start; i >= 1; i-- {
		if text[i] == ' ' {
			return i + 1
		}
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
