package agent

import (
	"context"
	"strings"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/structured"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// followUpCount — сколько подсказок получает клиент.
const followUpCount = 3

// Усечение текущего хода в промпте подсказок.
const (
	followUpMessageLen = 150
	followUpReplyLen   = 400
)

// Признаки типа ответа бота для промпта подсказок.
var (
	guidingMarkers    = []string{"希望", "您想", "可以", "建議", "例如", "什麼"}
	suggestingMarkers = []string{"學習目標", "教學活動", "評量", "建議", "可以"}
)

// FollowUps генерирует три фразы, которыми пользователь может продолжить
// разговор. Вызов модели не проходит проверку темы. Любой сбой даёт
// дефолтную тройку, 1-2 подсказки дополняются дефолтными.
func (o *Orchestrator) FollowUps(ctx context.Context, userMessage, reply string, history []Turn) []string {
	lowered := strings.ToLower(reply)
	data := prompt.FollowUpData{
		UserMessage:  utils.Truncate(userMessage, followUpMessageLen),
		BotReply:     utils.Truncate(reply, followUpReplyLen),
		History:      followUpHistory(history, o.chat.FollowUpTail, o.chat.FollowUpKeep, o.chat.FollowUpTrimLen),
		IsGuiding:    containsAny(lowered, guidingMarkers),
		IsSuggesting: containsAny(lowered, suggestingMarkers),
		IsAsking:     strings.ContainsAny(reply, "?？"),
	}

	msgs, pc, err := o.render(prompt.FollowUp, data)
	if err != nil {
		o.log.Errorw("Failed to render follow-up prompt", "error", err)
		o.metrics.Fallback(opFollowUp, "default_follow_ups")
		return o.defaultFollowUps()
	}

	resp, err := o.generate(ctx, opFollowUp, msgs, append(baseOptions(pc), llm.WithFormat(llm.FormatJSONObject))...)
	if err != nil {
		o.log.Warnw("Follow-up generation failed, using defaults", "error", err)
		o.metrics.Fallback(opFollowUp, "default_follow_ups")
		return o.defaultFollowUps()
	}

	questions := structured.DecodeFollowUps(resp.Content)
	if len(questions) == 0 {
		o.log.Warnw("Follow-up response has no suggestions", "raw", utils.Truncate(resp.Content, 200))
		o.metrics.Fallback(opFollowUp, "default_follow_ups")
		return o.defaultFollowUps()
	}

	return o.completeFollowUps(questions)
}

// completeFollowUps обрезает список до трёх и дополняет дефолтными
// подсказками без повторов.
func (o *Orchestrator) completeFollowUps(questions []string) []string {
	if len(questions) >= followUpCount {
		return append([]string{}, questions[:followUpCount]...)
	}

	out := append([]string{}, questions...)
	seen := make(map[string]bool, len(out))
	for _, q := range out {
		seen[q] = true
	}
	for _, d := range o.chat.DefaultFollowUps {
		if len(out) == followUpCount {
			break
		}
		if !seen[d] {
			out = append(out, d)
			seen[d] = true
		}
	}
	return out
}

func (o *Orchestrator) defaultFollowUps() []string {
	defaults := o.chat.DefaultFollowUps
	if len(defaults) > followUpCount {
		defaults = defaults[:followUpCount]
	}
	return append([]string{}, defaults...)
}

// followUpHistory строит сводку хвоста разговора: из последних tail
// сообщений берутся непустые, каждое усечено до trimLen, остаются
// последние keep строк.
func followUpHistory(history []Turn, tail, keep, trimLen int) string {
	if tail > 0 && len(history) > tail {
		history = history[len(history)-tail:]
	}

	var lines []string
	for _, t := range history {
		if t.Content == "" {
			continue
		}
		speaker := "機器人"
		if t.Role == string(llm.RoleUser) {
			speaker = "用戶"
		}
		lines = append(lines, speaker+": "+utils.Truncate(t.Content, trimLen))
	}

	if keep > 0 && len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "\n")
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
