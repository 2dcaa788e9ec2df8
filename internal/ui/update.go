package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/agent"
)

// requestTimeout ограничивает ожидание одного ответа сервера.
const requestTimeout = 2 * time.Minute

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	switch msg := msg.(type) {

	// 1. Изменение размера окна терминала
	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := m.textarea.Height() + 3 // граница + строка подсказок

		vpHeight := msg.Height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(msg.Width)
		m.ready = true
		m.refreshViewport()

	// 2. Клавиши
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" || m.busy {
				return m, nil
			}
			m.textarea.Reset()

			if input == "/quit" {
				return m, tea.Quit
			}

			req, err := m.buildRequest(input)
			if err != nil {
				m.appendLog(errorMsgStyle("ERROR: ") + err.Error())
				return m, nil
			}

			m.busy = true
			m.appendLog(userMsgStyle("YOU > ") + req.Message)
			return m, sendCmd(m.sender, req)
		}

	// 3. Ответ сервера
	case chatResultMsg:
		m.busy = false
		if msg.err != nil {
			m.appendLog(errorMsgStyle("ERROR: ") + msg.err.Error())
			break
		}

		reply := msg.resp.Reply.Text
		m.history = append(m.history,
			agent.Turn{Role: "user", Content: msg.userText},
			agent.Turn{Role: "assistant", Content: reply},
		)
		m.suggestions = msg.resp.SuggestedQuestions
		m.appendLog(botMsgStyle("BOT > ") + reply)
		m.textarea.Focus()
	}

	return m, tea.Batch(tiCmd, vpCmd)
}

// buildRequest превращает ввод в запрос. /N отправляет N-ю подсказку
// с флагом is_suggested_question.
func (m MainModel) buildRequest(input string) (agent.ChatRequest, error) {
	req := agent.ChatRequest{
		Message:             input,
		Topic:               m.session.Topic,
		Grade:               m.session.Grade,
		DP:                  m.session.DP,
		PA:                  m.session.PA,
		ConversationHistory: m.History(),
	}

	if strings.HasPrefix(input, "/") {
		n, err := strconv.Atoi(strings.TrimPrefix(input, "/"))
		if err != nil {
			return req, fmt.Errorf("unknown command %q", input)
		}
		if n < 1 || n > len(m.suggestions) {
			return req, fmt.Errorf("no suggestion #%d", n)
		}
		req.Message = m.suggestions[n-1]
		req.IsSuggestedQuestion = true
	}

	return req, nil
}

// sendCmd отправляет запрос асинхронно, чтобы не блокировать UI.
func sendCmd(sender Sender, req agent.ChatRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		resp, err := sender.Send(ctx, req)
		return chatResultMsg{userText: req.Message, resp: resp, err: err}
	}
}
