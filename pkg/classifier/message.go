// Package classifier содержит эвристические классификаторы сервиса:
// файлов по имени (Engine) и сообщений чата (Messages).
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
)

// Scaffolding — насколько подробно нужно направлять пользователя.
type Scaffolding string

const (
	ScaffoldingHigh   Scaffolding = "high"
	ScaffoldingMedium Scaffolding = "medium"
	ScaffoldingLow    Scaffolding = "low"
)

// Stance — инструкционная позиция ассистента.
type Stance string

const (
	StanceSocratic   Stance = "socratic"
	StanceSuggestion Stance = "suggestion"
	StanceDirect     Stance = "direct"
)

// ReplyKind — какой дефолтный ответ подставить при пустом ответе модели.
type ReplyKind string

const (
	ReplyGreeting ReplyKind = "greeting"
	ReplyDesign   ReplyKind = "design"
	ReplyGeneric  ReplyKind = "generic"
)

// Assessment — результат эвристического анализа хода разговора.
type Assessment struct {
	Rounds           int // Число сообщений пользователя в истории
	LastUserLength   int // Длина последнего сообщения пользователя в символах
	Scaffolding      Scaffolding
	SufficientDetail bool
	WantsDirect      bool
	Stance           Stance
}

// Messages классифицирует сообщения чата по спискам ключевых слов
// и порогам из ChatConfig. Состояния не хранит.
type Messages struct {
	cfg       config.ChatConfig
	greetings []string
	scope     []string
	direct    []string
	detail    []string
	design    []string
}

// NewMessages создает классификатор. Пустые поля конфигурации заменяются дефолтами.
func NewMessages(cfg config.ChatConfig) *Messages {
	cfg = cfg.GetDefaults()
	return &Messages{
		cfg:       cfg,
		greetings: lowerAll(cfg.Greetings),
		scope:     lowerAll(cfg.ScopeKeywords),
		direct:    lowerAll(cfg.DirectAnswerKeywords),
		detail:    lowerAll(cfg.DetailKeywords),
		design:    lowerAll(cfg.DesignKeywords),
	}
}

// IsGreeting сообщает, содержит ли текст приветствие.
//
// Латинские приветствия ищутся как отдельные слова ("hi" не найдётся
// в "this"), остальные как подстрока.
func (m *Messages) IsGreeting(text string) bool {
	t := strings.ToLower(text)
	for _, g := range m.greetings {
		if isASCII(g) {
			if containsWord(t, g) {
				return true
			}
			continue
		}
		if strings.Contains(t, g) {
			return true
		}
	}
	return false
}

// InScope сообщает, относится ли сообщение к дизайну обучения.
//
// Принимаются приветствия и сообщения с ключевыми словами. Пустое
// сообщение считается допустимым.
func (m *Messages) InScope(text string) bool {
	t := strings.TrimSpace(strings.ToLower(text))
	if t == "" {
		return true
	}
	if m.IsGreeting(t) {
		return true
	}
	return containsAny(t, m.scope)
}

// Assess оценивает ход разговора.
//
// Длина и ключевые слова берутся из последнего сообщения пользователя в
// истории; без истории используется текущее сообщение. Прямой ответ
// запрашивается только текущим сообщением.
func (m *Messages) Assess(message string, priorUserMessages []string) Assessment {
	a := Assessment{Rounds: len(priorUserMessages)}

	last := message
	if n := len(priorUserMessages); n > 0 {
		last = priorUserMessages[n-1]
	}
	a.LastUserLength = utf8.RuneCountInString(strings.TrimSpace(last))

	switch {
	case a.LastUserLength < m.cfg.HighScaffoldingBelow:
		a.Scaffolding = ScaffoldingHigh
	case a.LastUserLength < m.cfg.MediumScaffoldingBelow:
		a.Scaffolding = ScaffoldingMedium
	default:
		a.Scaffolding = ScaffoldingLow
	}

	hasDetail := containsAny(strings.ToLower(last), m.detail)
	if (a.LastUserLength > m.cfg.DetailWithKeywordOver && hasDetail) || a.LastUserLength > m.cfg.DetailOver {
		a.SufficientDetail = true
	}
	if a.Rounds >= m.cfg.DetailMinRounds && a.LastUserLength > m.cfg.DetailAfterRoundsOver {
		a.SufficientDetail = true
	}

	a.WantsDirect = containsAny(strings.ToLower(message), m.direct)

	switch {
	case a.WantsDirect:
		a.Stance = StanceDirect
	case a.SufficientDetail:
		a.Stance = StanceSuggestion
	default:
		a.Stance = StanceSocratic
	}

	return a
}

// ReplyKind выбирает дефолтный ответ для сообщения.
func (m *Messages) ReplyKind(message string) ReplyKind {
	if m.IsGreeting(message) {
		return ReplyGreeting
	}
	if containsAny(strings.ToLower(message), m.design) {
		return ReplyDesign
	}
	return ReplyGeneric
}

// DefaultReply возвращает текст дефолтного ответа для сообщения.
func (m *Messages) DefaultReply(message string) string {
	switch m.ReplyKind(message) {
	case ReplyGreeting:
		return m.cfg.GreetingReply
	case ReplyDesign:
		return m.cfg.DesignReply
	default:
		return m.cfg.GenericReply
	}
}

// RefusalText возвращает текст отказа для сообщений вне темы.
func (m *Messages) RefusalText() string {
	return m.cfg.RefusalText
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// containsWord ищет word в text с границами слова по обе стороны.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset <= len(text)-len(word); {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(text) || !isWordRune(after)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
