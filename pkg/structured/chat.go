package structured

import (
	"encoding/json"
	"strings"
)

// ChatReply — текст ответа ассистента.
type ChatReply struct {
	Text string `json:"text"`
}

// ActionTarget — к какому объекту дизайна относится действие.
type ActionTarget struct {
	Context         string `json:"context"`
	ContextObjectID *int   `json:"context_object_id,omitempty"`
}

// ActionUI — как фронтенд показывает действие.
type ActionUI struct {
	Presentation    string `json:"presentation,omitempty"`
	HighlightTarget string `json:"highlight_target,omitempty"`
}

// Action — действие UI, предложенное моделью.
type Action struct {
	ActionType string         `json:"action_type"`
	Target     ActionTarget   `json:"target"`
	Payload    map[string]any `json:"payload,omitempty"`
	UI         *ActionUI      `json:"ui,omitempty"`
}

// ChatResponse — разобранный ответ ассистента.
type ChatResponse struct {
	Reply   ChatReply `json:"chat_message_reply"`
	Actions []Action  `json:"actions"`
}

// IsFinalChatAnswer сообщает, что content целиком является ответом по
// схеме чата с непустым текстом. JSON из прозы не извлекается.
func IsFinalChatAnswer(content string) bool {
	var doc any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &doc); err != nil {
		return false
	}
	if Validate(ChatSchema().Definition, doc) != nil {
		return false
	}

	obj, _ := doc.(map[string]any)
	reply, _ := obj["chat_message_reply"].(map[string]any)
	text, _ := reply["text"].(string)
	return strings.TrimSpace(text) != ""
}

// DecodeChat разбирает ответ ассистента по принципу best-effort.
//
// Никогда не падает: нераспознанный ответ даёт пустой текст, действия,
// не прошедшие схему действия, отбрасываются. Возвращает число
// отброшенных действий.
func DecodeChat(content string) (ChatResponse, int) {
	resp := ChatResponse{Actions: []Action{}}

	doc, err := Decode(content)
	if err != nil {
		return resp, 0
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return resp, 0
	}

	if reply, ok := obj["chat_message_reply"].(map[string]any); ok {
		if text, ok := reply["text"].(string); ok {
			resp.Reply.Text = strings.TrimSpace(text)
		}
	}

	rawActions, _ := obj["actions"].([]any)
	dropped := 0
	for _, raw := range rawActions {
		action, ok := decodeAction(raw)
		if !ok {
			dropped++
			continue
		}
		resp.Actions = append(resp.Actions, action)
	}

	return resp, dropped
}

func decodeAction(raw any) (Action, bool) {
	if err := Validate(actionSchema(), raw); err != nil {
		return Action{}, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return Action{}, false
	}
	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return Action{}, false
	}
	return action, true
}
