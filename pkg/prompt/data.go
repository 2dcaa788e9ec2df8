package prompt

// Stance — инструкционная позиция ассистента.
const (
	StanceSocratic   = "socratic"
	StanceSuggestion = "suggestion"
	StanceDirect     = "direct"
)

// ILOData — данные для ilo_generation и ilo_generation_safe.
type ILOData struct {
	Topic                string
	Description          string
	Subject              string
	Grade                string
	BloomLevel           string
	ActionVerb           string
	DisciplinaryPractice string
	Categories           []string
}

// DPData — данные для dp_suggestion.
type DPData struct {
	Topic       string
	Description string
	Subject     string
}

// ChatData — данные для chat_system.
type ChatData struct {
	Stance      string // StanceSocratic, StanceSuggestion или StanceDirect
	Scaffolding string // high, medium, low
}

// FollowUpData — данные для follow_up.
type FollowUpData struct {
	UserMessage  string
	BotReply     string
	History      string // Пусто в начале разговора
	IsGuiding    bool
	IsSuggesting bool
	IsAsking     bool
}

// DocumentData — данные для document_analysis.
type DocumentData struct {
	Context  []string // "科目：...", "年級：...", "課題：..."
	Filename string
	Content  string
	Question string
}
