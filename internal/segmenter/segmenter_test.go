package segmenter_test

import (
	"strings"
	"testing"
	"unicode"

	"storybook-server/internal/segmenter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharLimit(t *testing.T) {
	cases := map[int]int{1: 100, 3: 100, 4: 200, 6: 200, 7: 300, 9: 300, 10: 400, 12: 400}
	for age, want := range cases {
		assert.Equal(t, want, segmenter.CharLimit(age), "age %d", age)
	}
}

func TestSegment_ParagraphThenHardCut(t *testing.T) {
	text := strings.Repeat("a", 180) + "\n\n" + strings.Repeat("b", 248)
	require.Len(t, []rune(text), 430)

	pages := segmenter.Segment(text, 5)

	require.Len(t, pages, 3)
	assert.Equal(t, strings.Repeat("a", 180), pages[0].Text)
	assert.Equal(t, strings.Repeat("b", 200), pages[1].Text)
	assert.Equal(t, strings.Repeat("b", 48), pages[2].Text)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Index)
	}
}

func TestSegment_ParagraphThenSentence(t *testing.T) {
	paragraph := strings.Repeat("Fox naps. ", 18)
	sentence := "The fox shares a berry. "
	text := paragraph + "\n\n" + strings.Repeat(sentence, 10) + "Bye now!"
	require.Len(t, []rune(text), 430)

	pages := segmenter.Segment(text, 5)

	require.Len(t, pages, 3)
	assert.Equal(t, strings.TrimSpace(paragraph), pages[0].Text)
	assert.Equal(t, strings.TrimSpace(strings.Repeat(sentence, 8)), pages[1].Text)
	assert.Equal(t, strings.Repeat(sentence, 2)+"Bye now!", pages[2].Text)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Index)
		assert.LessOrEqual(t, len([]rune(p.Text)), 200)
	}
	assert.True(t, strings.HasSuffix(pages[1].Text, "."), "second page ends on a sentence boundary")
}

func TestSegment_PrefersSentenceOverSpace(t *testing.T) {
	first := "The fox ran home. "
	text := first + strings.Repeat("word ", 30)

	pages := segmenter.Segment(text, 2)

	require.NotEmpty(t, pages)
	assert.Equal(t, "The fox ran home.", pages[0].Text)
	for _, p := range pages {
		assert.LessOrEqual(t, len([]rune(p.Text)), 100)
	}
}

func TestSegment_SplitsOnSentenceEnd(t *testing.T) {
	sentence := strings.Repeat("x", 60) + "! "
	text := sentence + strings.Repeat("y", 60)

	pages := segmenter.Segment(text, 3)

	require.Len(t, pages, 2)
	assert.Equal(t, strings.Repeat("x", 60)+"!", pages[0].Text)
	assert.Equal(t, strings.Repeat("y", 60), pages[1].Text)
}

func TestSegment_ShortTextIsSinglePage(t *testing.T) {
	pages := segmenter.Segment("  A tiny tale.  ", 8)
	require.Len(t, pages, 1)
	assert.Equal(t, "A tiny tale.", pages[0].Text)
}

func TestSegment_EmptyInput(t *testing.T) {
	assert.Empty(t, segmenter.Segment("", 5))
	assert.Empty(t, segmenter.Segment(" \n\n \n ", 5))
}

func TestSegment_Properties(t *testing.T) {
	texts := []string{
		strings.Repeat("Once upon a time a bear found honey. ", 40),
		strings.Repeat("Lorem ipsum dolor sit amet consectetur\n\n", 25),
		strings.Repeat("z", 1234),
		"Мишка косолапый по лесу идет, шишки собирает, песенки поет. " + strings.Repeat("Ой! ", 90),
		"Tom said: hello!\r\n\r\nAnna said: hi?  " + strings.Repeat("ok. ", 120),
	}

	for _, text := range texts {
		for age := 1; age <= 12; age++ {
			limit := segmenter.CharLimit(age)
			pages := segmenter.Segment(text, age)

			var joined strings.Builder
			for i, p := range pages {
				assert.Equal(t, i+1, p.Index)
				assert.NotEmpty(t, strings.TrimSpace(p.Text), "empty page at age %d", age)
				assert.LessOrEqual(t, len([]rune(p.Text)), limit, "page too long at age %d", age)
				joined.WriteString(p.Text)
			}
			assert.Equal(t, stripSpace(text), stripSpace(joined.String()), "order is preserved at age %d", age)
		}
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
