package service

import (
	"fmt"
	"strings"
)

// Промпты текстовой модели.

const rewriteSystemPrompt = "You are a helpful AI assistant that rewrites stories to be child-friendly and educational."

func buildRewritePrompt(text string, age int, learningThemes string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the following story for a child of age %d.\n", age)
	if strings.TrimSpace(learningThemes) != "" {
		b.WriteString("Please also incorporate the following learning themes or opportunities naturally into the story:\n")
		b.WriteString(learningThemes)
		b.WriteString("\n")
	}
	b.WriteString("Ensure the story remains engaging, coherent, and suitable for the specified age.\n")
	b.WriteString("Separate paragraphs with a blank line. Return only the story text.\n\n")
	fmt.Fprintf(&b, "Original Story:\n%s\n\nRewritten Story:", text)
	return b.String()
}

const dialogueSystemPrompt = "You are an expert scriptwriter for children's audio stories."

func buildDialoguePrompt(pageText string, age int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transform the following page of a children's story for a %d-year-old into a short script for narration.\n", age)
	b.WriteString("Every line must have the form \"Speaker: line\".\n")
	b.WriteString("Use \"Narrator\" for narration, the character's name for spoken lines, or \"Character\" when the speaker has no name.\n")
	b.WriteString("Keep the meaning and the order of events. Do not add stage directions, headings or commentary.\n\n")
	fmt.Fprintf(&b, "Page text:\n%s\n\nScript:", pageText)
	return b.String()
}

const verifySystemPrompt = "You are an AI assistant evaluating if an image would be appropriate for a children's storybook page."

func buildVerifyPrompt(pageText string, age int, styleHint string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The page text is: %q\n", pageText)
	fmt.Fprintf(&b, "The image should be a colorful, whimsical, scene-only illustration appealing to a %d-year-old child that depicts this text.\n", age)
	if strings.TrimSpace(styleHint) != "" {
		fmt.Fprintf(&b, "It should also attempt to follow this style guidance: %q.\n", styleHint)
	}
	b.WriteString("The image MUST NOT contain any text, letters, or words.\n")
	b.WriteString("Answer with exactly one word: true if the image is appropriate and matches the text, false otherwise.")
	return b.String()
}
