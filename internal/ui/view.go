package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m MainModel) View() string {
	if !m.ready {
		return "Initializing UI..."
	}

	status := fmt.Sprintf(" LDS Chatbot | TOPIC: %s | GRADE: %s ", orDash(m.session.Topic), orDash(m.session.Grade))
	if m.busy {
		status += "| thinking... "
	}
	header := headerStyle.Width(m.viewport.Width).Render(status)

	border := lipgloss.NewStyle().
		Foreground(grayColor).
		Width(m.viewport.Width).
		Render(strings.Repeat("─", max(m.viewport.Width, 1)))

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		header,
		m.viewport.View(),
		border,
		renderSuggestions(m.suggestions),
		m.textarea.View(),
	)
}

// renderSuggestions выводит подсказки в одну строку: /1 ... /2 ... /3 ...
func renderSuggestions(suggestions []string) string {
	if len(suggestions) == 0 {
		return systemMsgStyle("(no suggestions yet)")
	}
	parts := make([]string, len(suggestions))
	for i, s := range suggestions {
		parts[i] = fmt.Sprintf("/%d %s", i+1, s)
	}
	return suggestionStyle(strings.Join(parts, "  "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
