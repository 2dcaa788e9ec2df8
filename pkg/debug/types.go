// Package debug записывает JSON трейсы операций сервиса.
//
// Трейс одной операции (chat, generate_ilos, suggest_dp, analyze_document)
// содержит все вызовы модели с их параметрами и ответами, исполнения
// инструментов чата и итог операции. Файл пишется при завершении операции.
package debug

import (
	"time"
)

// Trace представляет полный трейс одной операции.
type Trace struct {
	// RunID — уникальный идентификатор трейса (используется в имени файла)
	RunID string `json:"run_id"`

	// Operation — имя операции
	Operation string `json:"operation"`

	// Timestamp — время начала операции
	Timestamp time.Time `json:"timestamp"`

	// Input — исходный запрос пользователя или его краткое описание
	Input string `json:"input,omitempty"`

	// Duration — общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	// LLMCalls — вызовы модели в порядке выполнения
	LLMCalls []LLMCall `json:"llm_calls,omitempty"`

	// ToolsExecuted — исполненные инструменты
	ToolsExecuted []ToolExecution `json:"tools_executed,omitempty"`

	Summary Summary `json:"summary"`

	// Result — итог операции (JSON ответа клиенту)
	Result string `json:"result,omitempty"`

	// Error — ошибка, если операция завершилась неудачно
	Error string `json:"error,omitempty"`
}

// LLMCall описывает один вызов модели.
type LLMCall struct {
	// Step — шаг внутри операции (chat, follow_up, ...)
	Step string `json:"step"`

	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Format — text, json_object или json_schema
	Format string `json:"format"`

	// Schema — имя схемы для json_schema
	Schema string `json:"schema,omitempty"`

	// Tools — имена предложенных функций
	Tools []string `json:"tools,omitempty"`

	Messages []MessageEntry `json:"messages"`

	// Content — текстовый ответ модели
	Content string `json:"content,omitempty"`

	ToolCalls []ToolCallInfo `json:"tool_calls,omitempty"`

	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// ToolCallInfo описывает вызов функции, запрошенный моделью.
type ToolCallInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"`
}

// ToolExecution описывает выполнение одного инструмента.
type ToolExecution struct {
	Name string `json:"name"`

	// Args — аргументы (пусто, если IncludeToolArgs выключен)
	Args string `json:"args,omitempty"`

	// Result — результат (может быть обрезан по MaxResultSize)
	Result string `json:"result,omitempty"`

	ResultTruncated bool `json:"result_truncated,omitempty"`

	Duration int64 `json:"duration_ms"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Summary содержит агрегированную статистику трейса.
type Summary struct {
	TotalLLMCalls      int      `json:"total_llm_calls"`
	TotalToolsExecuted int      `json:"total_tools_executed"`
	TotalLLMDuration   int64    `json:"total_llm_duration_ms"`
	TotalToolDuration  int64    `json:"total_tool_duration_ms"`
	Errors             []string `json:"errors,omitempty"`
	VisitedTools       []string `json:"visited_tools,omitempty"`
}

// MessageEntry — одно сообщение запроса к модели.
type MessageEntry struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCallInfo `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}
