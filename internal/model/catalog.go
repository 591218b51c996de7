package model

import (
	"fmt"
	"strings"
)

// LearningTag - учебная тема, которую можно вплести в историю.
type LearningTag struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	LearningFocus        string `json:"learningFocus"`
	DescriptionForPrompt string `json:"descriptionForPrompt"`
}

// VisualStyle - пресет художественного стиля иллюстраций.
type VisualStyle struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const DefaultVisualStyleID = "ai_default"

var learningTags = []LearningTag{
	{
		ID:                   "counting_math",
		Name:                 "Counting (Math)",
		LearningFocus:        "Basic counting and number recognition.",
		DescriptionForPrompt: "Incorporate scenes where characters share items (e.g., food or objects), allowing for counting of items or recipients. This reinforces number sense and one-to-one correspondence.",
	},
	{
		ID:                   "addition_subtraction_math",
		Name:                 "Addition and Subtraction (Math)",
		LearningFocus:        "Simple addition and subtraction concepts.",
		DescriptionForPrompt: "Illustrate simple addition or subtraction when characters give away or collect items, showing how quantities change (e.g., reducing a total by sharing or adding items to a group).",
	},
	{
		ID:                   "gardening_plant_life_cycle",
		Name:                 "Gardening (Plant Life Cycle)",
		LearningFocus:        "Understanding plant needs and growth.",
		DescriptionForPrompt: "If the story involves plants or crops, introduce the concept of plants needing care like water and sunlight to grow. Show plants struggling or thriving based on this care.",
	},
	{
		ID:                   "sharing_fairness_social_math",
		Name:                 "Sharing and Fairness (Social-Emotional Math)",
		LearningFocus:        "Dividing resources equally to practice fairness.",
		DescriptionForPrompt: "When characters share resources, explore concepts of equal division and the social value of fairness. Show how sharing equally can be achieved.",
	},
	{
		ID:                   "patterns_math",
		Name:                 "Patterns (Math)",
		LearningFocus:        "Recognizing and creating patterns.",
		DescriptionForPrompt: "If the story describes colorful or repeating elements (e.g., in nature or a character's actions), introduce pattern recognition, such as alternating colors or sequences of actions.",
	},
	{
		ID:                   "environmental_awareness_ecology",
		Name:                 "Environmental Awareness (Gardening/Ecology)",
		LearningFocus:        "Understanding ecosystems and caring for nature.",
		DescriptionForPrompt: "If the story features animals or plants in a natural setting, highlight the importance of a balanced ecosystem and how characters' actions can affect living things positively or negatively.",
	},
	{
		ID:                   "measurement_math",
		Name:                 "Measurement (Math)",
		LearningFocus:        "Exploring size and comparison.",
		DescriptionForPrompt: "If the story contrasts characters or objects of different sizes, introduce opportunities to compare sizes and discuss basic measurement concepts like bigger, smaller, taller, shorter.",
	},
}

var visualStyles = []VisualStyle{
	{ID: DefaultVisualStyleID, Name: "AI Default (No Specific Style)"},
	{
		ID:          "watercolor",
		Name:        "Classic Watercolor Storybook",
		Description: "Art Style: soft hand-painted watercolor with gentle gradients and delicate textures, like a traditional picture book. Color Palette: pastel pinks, blues, greens and yellows with warm accents. Mood: warm, inviting and nostalgic, perfect for bedtime",
	},
	{
		ID:          "cartoon",
		Name:        "Whimsical Cartoon",
		Description: "Art Style: bold clean lines and a modern cartoon look with playful exaggerated proportions. Color Palette: bright saturated colors with high contrast. Mood: fun, energetic and full of personality",
	},
	{
		ID:          "sketchbook",
		Name:        "Hand-Drawn Sketchbook",
		Description: "Art Style: loose pencil sketch with cross-hatching and minimal coloring, like a child's doodle come to life. Color Palette: mostly grayscale pencil textures with small pops of color. Mood: imaginative and raw",
	},
	{
		ID:          "digital_pop",
		Name:        "Vibrant Digital Pop",
		Description: "Art Style: sleek digital art with bold outlines and smooth gradients, like a modern children's app. Color Palette: neon-bright, highly saturated colors. Mood: modern, energetic and techy",
	},
	{
		ID:          "claymation",
		Name:        "Soft Claymation Aesthetic",
		Description: "Art Style: textured 3D-like visuals that mimic stop-motion claymation with a tactile handmade feel. Color Palette: warm earthy tones with a subtle clay texture. Mood: cozy, handmade and quirky",
	},
	{
		ID:          "retro_book",
		Name:        "Retro Picture Book",
		Description: "Art Style: flat mid-century illustrations with bold shapes, black outlines and limited colors. Color Palette: mustard yellow, forest green, teal and coral. Mood: nostalgic, bold and charming",
	},
	{
		ID:          "fantasy_glow",
		Name:        "Fantasy Glow",
		Description: "Art Style: luminous ethereal digital painting with a magical glowing aesthetic. Color Palette: deep jewel tones of emerald, sapphire and amethyst with gold and turquoise highlights. Mood: enchanting and awe-inspiring",
	},
}

// LearningTags возвращает копию каталога учебных тем.
func LearningTags() []LearningTag {
	out := make([]LearningTag, len(learningTags))
	copy(out, learningTags)
	return out
}

// VisualStyles возвращает копию каталога стилей.
func VisualStyles() []VisualStyle {
	out := make([]VisualStyle, len(visualStyles))
	copy(out, visualStyles)
	return out
}

func FindLearningTag(id string) (LearningTag, bool) {
	for _, tag := range learningTags {
		if tag.ID == id {
			return tag, true
		}
	}
	return LearningTag{}, false
}

func FindVisualStyle(id string) (VisualStyle, bool) {
	for _, style := range visualStyles {
		if style.ID == id {
			return style, true
		}
	}
	return VisualStyle{}, false
}

// LearningThemesPromptText собирает текст учебных тем для промпта переписывания.
// Неизвестные идентификаторы пропускаются; пустой результат означает "без тем".
func LearningThemesPromptText(ids []string) string {
	var sb strings.Builder
	for _, id := range ids {
		tag, ok := FindLearningTag(id)
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", tag.Name, tag.DescriptionForPrompt))
	}
	return strings.TrimRight(sb.String(), "\n")
}
