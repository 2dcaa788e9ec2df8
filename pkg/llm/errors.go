package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Категории ошибок провайдера. Проверяются через errors.Is.
var (
	ErrContentPolicy = errors.New("llm: content policy violation")
	ErrTimeout       = errors.New("llm: timeout")
	ErrUnreachable   = errors.New("llm: provider unreachable")
	ErrRejected      = errors.New("llm: request rejected")
	ErrCanceled      = errors.New("llm: request canceled")
	ErrEmptyResponse = errors.New("llm: no choices in response")
)

// contentPolicyMarkers — признаки срабатывания фильтра контента в тексте ошибки.
var contentPolicyMarkers = []string{
	"content_filter",
	"content management policy",
	"ResponsibleAIPolicyViolation",
}

// Error — классифицированная ошибка вызова LLM.
type Error struct {
	Kind       error  // Одна из Err* категорий
	StatusCode int    // HTTP статус провайдера, 0 если ответа не было
	Message    string // Сообщение провайдера, если есть
	Err        error  // Исходная ошибка SDK
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap позволяет errors.Is находить и категорию, и исходную ошибку.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsContentPolicyText проверяет текст на признаки фильтра контента.
func IsContentPolicyText(s string) bool {
	for _, marker := range contentPolicyMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// IsContentPolicy сообщает, отклонил ли провайдер запрос по политике контента.
// Смотрит и на категорию, и на текст ошибки: некоторые прокси отдают фильтр как обычный 400.
func IsContentPolicy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContentPolicy) {
		return true
	}
	return IsContentPolicyText(err.Error())
}

// StatusCode возвращает HTTP статус провайдера из цепочки ошибок.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
