package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/structured"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// Turn — одно сообщение истории разговора от клиента.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest — запрос к ассистенту.
type ChatRequest struct {
	Message string `json:"message"`

	// IsSuggestedQuestion — сообщение выбрано из подсказок бота,
	// проверка темы для него не выполняется.
	IsSuggestedQuestion bool `json:"is_suggested_question"`

	Topic string `json:"topic"`
	Grade string `json:"grade"`
	DP    string `json:"dp"`
	PA    string `json:"pa"`

	ConversationHistory []Turn `json:"conversation_history"`
}

// ChatResponse — ответ ассистента.
type ChatResponse struct {
	Reply              structured.ChatReply `json:"chat_message_reply"`
	Actions            []structured.Action  `json:"actions"`
	SuggestedQuestions []string             `json:"suggested_questions"`
}

// chatPhase — состояние двухраундового протокола с функциями.
type chatPhase int

const (
	// awaitingModelDecision: модель отвечает сама или вызывает функцию.
	awaitingModelDecision chatPhase = iota
	// awaitingFinalAnswer: ответ строго по схеме чата.
	awaitingFinalAnswer
)

// Chat отвечает на сообщение пользователя.
//
// Сообщение вне темы получает фиксированный отказ без вызова модели.
// Сбой модели или пустой ответ заменяются дефолтным ответом, поэтому
// ошибка возвращается только для пустого сообщения.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	ctx, rec := o.startTrace(ctx, opChat, req.Message)
	resp, err := o.answerChat(ctx, req)
	o.finishTrace(rec, resp, err)
	return resp, err
}

func (o *Orchestrator) answerChat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, invalidInput(http.StatusBadRequest, "message is required")
	}

	if !req.IsSuggestedQuestion && !o.messages.InScope(message) {
		o.metrics.Decision("refused")
		o.log.Infow("Chat message refused as out of scope", "message", utils.Truncate(message, 50))
		return &ChatResponse{
			Reply:              structured.ChatReply{Text: o.messages.RefusalText()},
			Actions:            []structured.Action{},
			SuggestedQuestions: o.defaultFollowUps(),
		}, nil
	}

	assessment := o.messages.Assess(message, userMessages(req.ConversationHistory))
	o.metrics.Decision("stance_" + string(assessment.Stance))
	o.log.Debugw("Chat assessment",
		"rounds", assessment.Rounds,
		"last_user_length", assessment.LastUserLength,
		"scaffolding", string(assessment.Scaffolding),
		"stance", string(assessment.Stance))

	msgs, pc, err := o.render(prompt.ChatSystem, prompt.ChatData{
		Stance:      string(assessment.Stance),
		Scaffolding: string(assessment.Scaffolding),
	})
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, historyWindow(req.ConversationHistory, o.chat.HistoryWindow)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: contextBlock(req) + message})

	content, err := o.runChatProtocol(ctx, msgs, pc)
	if err != nil {
		o.log.Errorw("Chat completion failed, using default reply", "error", err)
		o.metrics.Fallback(opChat, "llm_error")
		content = ""
	}

	resp, dropped := structured.DecodeChat(content)
	if dropped > 0 {
		o.log.Warnw("Dropped invalid chat actions", "dropped", dropped)
	}
	if resp.Reply.Text == "" {
		resp.Reply.Text = o.messages.DefaultReply(message)
		o.metrics.Fallback(opChat, "default_reply")
	}

	return &ChatResponse{
		Reply:              resp.Reply,
		Actions:            resp.Actions,
		SuggestedQuestions: o.FollowUps(ctx, message, resp.Reply.Text, req.ConversationHistory),
	}, nil
}

// runChatProtocol проводит разговор через два состояния.
//
// awaitingModelDecision: модель видит объявленные функции. Ответ без
// вызовов принимается сразу, только если он целиком JSON по схеме чата
// с непустым текстом. Вызовы функций исполняются, их результаты
// добавляются tool-сообщениями.
// awaitingFinalAnswer: вызов по схеме чата с откатом в json_object.
func (o *Orchestrator) runChatProtocol(ctx context.Context, msgs []llm.Message, pc prompt.PromptConfig) (string, error) {
	schema := structured.ChatSchema()

	var defs []tools.ToolDefinition
	if o.registry != nil {
		defs = o.registry.GetDefinitions()
	}

	phase := awaitingModelDecision
	if len(defs) == 0 {
		phase = awaitingFinalAnswer
	}

	for {
		switch phase {
		case awaitingModelDecision:
			decision, err := o.generate(ctx, opChat, msgs, append(baseOptions(pc), llm.WithTools(defs))...)
			if err != nil {
				return "", err
			}

			if !decision.HasToolCalls() {
				if structured.IsFinalChatAnswer(decision.Content) {
					return decision.Content, nil
				}
				phase = awaitingFinalAnswer
				continue
			}

			msgs = append(append([]llm.Message{}, msgs...), o.dispatchToolCalls(ctx, decision)...)
			phase = awaitingFinalAnswer

		case awaitingFinalAnswer:
			final, err := o.generateStructured(ctx, opChat, msgs, pc, schema)
			if err != nil {
				return "", err
			}
			return final.Content, nil
		}
	}
}

// dispatchToolCalls исполняет вызовы функций и возвращает сообщение
// ассистента с вызовами и по одному tool-сообщению на вызов.
//
// Ошибка инструмента не прерывает разговор: модель получает {"error": ...} и "details" при наличии.
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, decision llm.Message) []llm.Message {
	if decision.Role == "" {
		decision.Role = llm.RoleAssistant
	}
	out := make([]llm.Message, 0, len(decision.ToolCalls)+1)
	out = append(out, decision)

	for _, tc := range decision.ToolCalls {
		start := time.Now()
		result, err := o.registry.Dispatch(ctx, tc.Name, tc.Args)
		recordTool(ctx, tc, result, err, time.Since(start))

		content := tools.ResultContent(result, err)
		if errors.Is(err, tools.ErrToolNotFound) {
			content = errorJSON("Unknown API tool: " + tc.Name)
		}

		if err != nil {
			o.log.Warnw("Tool call failed", "tool", tc.Name, "error", err)
		} else {
			o.log.Infow("Tool call completed", "tool", tc.Name, "result_length", len(result))
		}

		out = append(out, llm.Message{
			Role:       llm.RoleTool,
			Content:    content,
			ToolCallID: tc.ID,
		})
	}

	return out
}

// contextBlock строит строки Topic/Grade/DP/PA перед сообщением пользователя.
func contextBlock(req ChatRequest) string {
	var lines []string
	for _, kv := range [][2]string{
		{"Topic", req.Topic},
		{"Grade", req.Grade},
		{"DP", req.DP},
		{"PA", req.PA},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			lines = append(lines, kv[0]+": "+v)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n\n"
}

// historyWindow берёт последние n сообщений истории и оставляет только
// непустые сообщения user и assistant.
func historyWindow(history []Turn, n int) []llm.Message {
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	out := make([]llm.Message, 0, len(history))
	for _, t := range history {
		role := llm.Role(t.Role)
		if role != llm.RoleUser && role != llm.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	return out
}

// userMessages возвращает тексты сообщений пользователя из истории.
func userMessages(history []Turn) []string {
	var out []string
	for _, t := range history {
		if t.Role == string(llm.RoleUser) {
			out = append(out, t.Content)
		}
	}
	return out
}

func errorJSON(message string) string {
	b, _ := json.Marshal(map[string]string{"error": message})
	return string(b)
}
