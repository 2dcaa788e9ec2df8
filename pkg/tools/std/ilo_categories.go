// Package std содержит стандартные инструменты ассистента поверх LDS API.
package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
)

// ILOCategoryToolName — имя функции, которое видит модель.
const ILOCategoryToolName = "ILO_get_category"

// OptionCaller — часть lds.Client, нужная инструментам.
type OptionCaller interface {
	Call(ctx context.Context, opt lds.Option, payload any) ([]byte, error)
}

// ILOCategoryTool — инструмент для получения категорий (типов) ILO из LDS.
//
// Аргументы модели передаются в LDS телом запроса без изменений.
type ILOCategoryTool struct {
	client OptionCaller
}

// NewILOCategoryTool создает инструмент поверх клиента LDS.
func NewILOCategoryTool(c OptionCaller) *ILOCategoryTool {
	return &ILOCategoryTool{client: c}
}

// Definition возвращает определение инструмента для function calling.
func (t *ILOCategoryTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        ILOCategoryToolName,
		Description: "Retrieve Intended Learning Outcomes category/types options from LDS system.",
		Parameters: tools.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"locale": map[string]any{
					"type":        "string",
					"description": "Language/locale, e.g., en, zh-HK",
				},
			},
			"required": []any{},
		},
	}
}

// Execute выполняет инструмент согласно контракту "Raw In, String Out".
func (t *ILOCategoryTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := t.client.Call(ctx, lds.OptionILOCategories, args)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// RegisterLDSTools регистрирует инструменты LDS в реестре.
func RegisterLDSTools(registry *tools.Registry, c OptionCaller) error {
	if err := registry.Register(NewILOCategoryTool(c)); err != nil {
		return fmt.Errorf("register %s: %w", ILOCategoryToolName, err)
	}
	return nil
}
