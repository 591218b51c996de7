package model

// PageDraft - страница после сегментации. Index начинается с 1, порядок
// страниц - порядок повествования.
type PageDraft struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// StageFlags отмечают, какие этапы для страницы еще не отработали.
type StageFlags struct {
	ImagePending     bool `json:"imagePending"`
	VoicePending     bool `json:"voicePending"`
	AnimationPending bool `json:"animationPending"`
}

// PageArtifact накапливает результаты всех этапов для одной страницы.
// Пустая строка в поле медиа означает "артефакта нет".
type PageArtifact struct {
	Index          int         `json:"index"`
	Text           string      `json:"text"`
	ImageURI       string      `json:"imageUri,omitempty"`
	ImageApproved  bool        `json:"imageApproved"`
	ImageChained   bool        `json:"imageChained"`
	DialogueScript string      `json:"dialogueScript,omitempty"`
	VoiceURI       string      `json:"voiceUri,omitempty"`
	Voice          MediaResult `json:"voice"`
	AnimationURI   string      `json:"animationUri,omitempty"`
	Animation      MediaResult `json:"animation"`
	Flags          StageFlags  `json:"flags"`
}

// NewPageArtifact создает артефакт для черновика; все этапы ожидают выполнения.
func NewPageArtifact(draft PageDraft) PageArtifact {
	return PageArtifact{
		Index: draft.Index,
		Text:  draft.Text,
		Flags: StageFlags{ImagePending: true, VoicePending: true, AnimationPending: true},
	}
}

func (p PageArtifact) HasImage() bool {
	return p.ImageURI != ""
}
