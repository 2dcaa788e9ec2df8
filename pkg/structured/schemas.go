// Package structured описывает формы ответов модели и разбирает их.
//
// Схемы уходят в response_format (json_schema) и тем же gojsonschema
// проверяют ответы. Ремонт ответа идёт по упорядоченным спискам алиасов.
package structured

import (
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
)

// Допустимые значения target.context в действиях чата.
var ActionContexts = []string{"CourseInfo", "ILO", "DP", "PA", "CC", "Task", "Lesson"}

// Допустимые значения ui.presentation в действиях чата.
var Presentations = []string{"popup", "sidebar", "tooltip", "highlight", "inline"}

// ILOSchema — массив ровно из 3 объектов {statement}.
func ILOSchema() llm.Schema {
	return llm.Schema{
		Name: "ilos",
		Definition: tools.JSONSchema{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"statement": map[string]any{"type": "string"},
				},
				"required": []any{"statement"},
			},
			"minItems": 3,
			"maxItems": 3,
		},
	}
}

// DPSchema — объект {recommended_dp, reason}.
func DPSchema() llm.Schema {
	return llm.Schema{
		Name: "dp_recommendation",
		Definition: tools.JSONSchema{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"recommended_dp": map[string]any{"type": "string"},
				"reason":         map[string]any{"type": "string"},
			},
			"required": []any{"recommended_dp", "reason"},
		},
	}
}

// ChatSchema — ответ ассистента: текст и необязательный список действий UI.
func ChatSchema() llm.Schema {
	return llm.Schema{
		Name: "lds_chatbot_response",
		Definition: tools.JSONSchema{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"chat_message_reply": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
					},
					"required": []any{"text"},
				},
				"actions": map[string]any{
					"type":  "array",
					"items": actionSchema(),
				},
			},
			"required": []any{},
		},
	}
}

func actionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action_type": map[string]any{"type": "string"},
			"target": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"context": map[string]any{
						"type": "string",
						"enum": toAny(ActionContexts),
					},
					"context_object_id": map[string]any{"type": "integer"},
				},
				"required": []any{"context"},
			},
			"payload": map[string]any{"type": "object"},
			"ui": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"presentation": map[string]any{
						"type": "string",
						"enum": toAny(Presentations),
					},
					"highlight_target": map[string]any{"type": "string"},
				},
				"required": []any{},
			},
		},
		"required": []any{"action_type", "target"},
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
