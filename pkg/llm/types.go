// Базовые типы - универсальный язык общения с моделями.
package llm

// Role — роль участника диалога.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall — запрос модели на вызов функции.
// Args — сырой JSON аргументов в том виде, в каком его прислала модель.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// Message — одно сообщение диалога.
//
// ToolCalls заполняется у ответа ассистента, который решил вызвать функции.
// ToolCallID заполняется у сообщения с ролью tool и связывает результат с вызовом.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// HasToolCalls сообщает, запросила ли модель вызов функций.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
