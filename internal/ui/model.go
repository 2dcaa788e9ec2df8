// Package ui реализует терминальный клиент чата на Bubble Tea.
//
// Клиент хранит историю разговора у себя и отправляет её с каждым
// сообщением: сервер состояния не держит.
package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wrap"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/agent"
)

// Sender отправляет сообщение ассистенту. Реализуется *ChatClient.
type Sender interface {
	Send(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

// Session — контекст курса, который уходит с каждым сообщением.
type Session struct {
	Topic string
	Grade string
	DP    string
	PA    string
}

// chatResultMsg — ответ сервера, пришедший асинхронно.
type chatResultMsg struct {
	userText string
	resp     *agent.ChatResponse
	err      error
}

// MainModel — модель Bubble Tea клиента.
type MainModel struct {
	viewport viewport.Model
	textarea textarea.Model

	sender  Sender
	session Session

	history     []agent.Turn
	suggestions []string

	// logLines хранит строки без переноса, перенос пересчитывается при ресайзе
	logLines []string

	busy  bool
	ready bool
}

// InitialModel создает начальное состояние UI.
func InitialModel(sender Sender, session Session) MainModel {
	ta := textarea.New()
	ta.Placeholder = "輸入訊息，/1-/3 選擇建議，/quit 離開"
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	// Размеры обновятся при первом WindowSizeMsg
	vp := viewport.New(0, 0)

	m := MainModel{
		textarea: ta,
		viewport: vp,
		sender:   sender,
		session:  session,
	}
	m.appendLog(systemMsgStyle("LDS Chatbot terminal client. Waiting for input..."))
	return m
}

// Init запускает мигание курсора.
func (m MainModel) Init() tea.Cmd {
	return textarea.Blink
}

// History возвращает копию истории разговора.
func (m MainModel) History() []agent.Turn {
	return append([]agent.Turn{}, m.history...)
}

// Suggestions возвращает текущие подсказки.
func (m MainModel) Suggestions() []string {
	return append([]string{}, m.suggestions...)
}

// appendLog добавляет строку в лог и прокручивает вниз.
func (m *MainModel) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	m.refreshViewport()
}

func (m *MainModel) refreshViewport() {
	width := m.viewport.Width
	var lines []string
	for _, line := range m.logLines {
		if width > 0 {
			line = wrap.String(line, width)
		}
		lines = append(lines, line)
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}
