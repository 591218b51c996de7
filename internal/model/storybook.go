package model

import (
	"time"
)

// StorybookStatus - статус книги, видимый клиенту.
type StorybookStatus string

const (
	StorybookStatusQueued    StorybookStatus = "queued"
	StorybookStatusRunning   StorybookStatus = "running"
	StorybookStatusCompleted StorybookStatus = "completed"
	StorybookStatusFailed    StorybookStatus = "failed"
)

// StorybookPage - страница сохраненной книги.
type StorybookPage struct {
	PageNumber          int    `json:"pageNumber" db:"page_number" firestore:"pageNumber"`
	Text                string `json:"text" db:"text" firestore:"text"`
	TransformedDialogue string `json:"transformedDialogue,omitempty" db:"transformed_dialogue" firestore:"transformedDialogue,omitempty"`
	ImageURL            string `json:"imageUrl,omitempty" db:"image_url" firestore:"imageUrl,omitempty"`
	ImageMatchesText    bool   `json:"imageMatchesText" db:"image_matches_text" firestore:"imageMatchesText"`
	VoiceoverURL        string `json:"voiceoverUrl,omitempty" db:"voiceover_url" firestore:"voiceoverUrl,omitempty"`
	AnimationURL        string `json:"animationUrl,omitempty" db:"animation_url" firestore:"animationUrl,omitempty"`
}

// Storybook - готовая книга в хранилище.
type Storybook struct {
	ID                     string          `json:"id" db:"id" firestore:"-"`
	UserID                 string          `json:"userId" db:"user_id" firestore:"userId"`
	Title                  string          `json:"title" db:"title" firestore:"title"`
	OriginalPrompt         string          `json:"originalPrompt" db:"original_prompt" firestore:"originalPrompt"`
	ChildAge               int             `json:"childAge" db:"child_age" firestore:"childAge"`
	VoiceGender            VoiceProfile    `json:"voiceGender" db:"voice_gender" firestore:"voiceGender"`
	StoryStyleDescription  string          `json:"storyStyleDescription,omitempty" db:"story_style_description" firestore:"storyStyleDescription,omitempty"`
	SelectedLearningTagIDs []string        `json:"selectedLearningTagIds,omitempty" db:"selected_learning_tag_ids" firestore:"selectedLearningTagIds,omitempty"`
	RewrittenStoryText     string          `json:"rewrittenStoryText,omitempty" db:"rewritten_story_text" firestore:"rewrittenStoryText,omitempty"`
	Pages                  []StorybookPage `json:"pages" db:"-" firestore:"pages"`
	Status                 StorybookStatus `json:"status" db:"status" firestore:"status"`
	CreatedAt              time.Time       `json:"createdAt" db:"created_at" firestore:"createdAt"`
}

const untitledStorybook = "Untitled Storybook"

// StorybookFromRun собирает книгу из завершенного прогона. Медиа, не прошедшее
// проверку data URI, в книгу не попадает.
func StorybookFromRun(id string, run *PipelineRun) *Storybook {
	req := run.Request
	title := req.Title
	if title == "" {
		title = untitledStorybook
	}
	sb := &Storybook{
		ID:                     id,
		UserID:                 req.UserID,
		Title:                  title,
		OriginalPrompt:         req.OriginalPrompt,
		ChildAge:               req.ChildAge,
		VoiceGender:            req.VoiceProfile,
		StoryStyleDescription:  req.ResolvedStyleHint(),
		SelectedLearningTagIDs: req.LearningTagIDs,
		RewrittenStoryText:     run.RewrittenText,
		Pages:                  make([]StorybookPage, 0, len(run.Pages)),
		Status:                 StorybookStatusCompleted,
		CreatedAt:              run.StartedAt,
	}
	for _, p := range run.Pages {
		sb.Pages = append(sb.Pages, StorybookPage{
			PageNumber:          p.Index,
			Text:                p.Text,
			TransformedDialogue: p.DialogueScript,
			ImageURL:            mediaOrEmpty(p.ImageURI, MediaFamilyImage),
			ImageMatchesText:    p.ImageApproved && p.ImageURI != "",
			VoiceoverURL:        mediaOrEmpty(p.VoiceURI, MediaFamilyAudio),
			AnimationURL:        mediaOrEmpty(p.AnimationURI, MediaFamilyImage),
		})
	}
	return sb
}

func mediaOrEmpty(uri, family string) string {
	if uri == "" || ValidateDataURI(uri, family) != nil {
		return ""
	}
	return uri
}
