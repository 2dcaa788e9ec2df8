package agent

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
)

// Kind — категория ошибки запроса.
type Kind string

const (
	KindInvalidInput            Kind = "InvalidInput"
	KindUpstreamTimeout         Kind = "UpstreamTimeout"
	KindUpstreamUnreachable     Kind = "UpstreamUnreachable"
	KindUpstreamRejected        Kind = "UpstreamRejected"
	KindMalformedUpstreamOutput Kind = "MalformedUpstreamOutput"
)

// Error — ошибка операции, готовая к отдаче клиенту.
//
// Body собирает JSON тело ответа: "error", "details" и дополнительные
// поля Fields.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details string
	Fields  map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Body возвращает JSON тело ответа с ошибкой.
func (e *Error) Body() map[string]any {
	body := map[string]any{"error": e.Message}
	if e.Details != "" {
		body["details"] = e.Details
	}
	for k, v := range e.Fields {
		body[k] = v
	}
	return body
}

// AsError достаёт *Error из цепочки.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func invalidInput(status int, message string) *Error {
	return &Error{Kind: KindInvalidInput, Status: status, Message: message}
}

func malformed(message string, fields map[string]any) *Error {
	return &Error{
		Kind:    KindMalformedUpstreamOutput,
		Status:  http.StatusInternalServerError,
		Message: message,
		Fields:  fields,
	}
}

// fromLLM раскладывает ошибку провайдера по категориям запроса.
func fromLLM(err error) *Error {
	e := &Error{Kind: KindUpstreamRejected, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	switch {
	case llm.IsContentPolicy(err):
		e.Status = http.StatusBadRequest
	case errors.Is(err, llm.ErrTimeout):
		e.Kind = KindUpstreamTimeout
		e.Status = http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrUnreachable):
		e.Kind = KindUpstreamUnreachable
		e.Status = http.StatusServiceUnavailable
	}
	return e
}

// fromLDS раскладывает ошибку транспорта LDS.
func fromLDS(err error) *Error {
	var ldsErr *lds.Error
	url := ""
	if errors.As(err, &ldsErr) {
		url = ldsErr.URL
	}

	switch lds.KindOf(err) {
	case lds.KindTimeout:
		return &Error{
			Kind:    KindUpstreamTimeout,
			Status:  http.StatusGatewayTimeout,
			Message: "Request to LDS API timed out",
			Fields:  map[string]any{"url": url},
			Err:     err,
		}
	case lds.KindConnectionFailure:
		return &Error{
			Kind:    KindUpstreamUnreachable,
			Status:  http.StatusServiceUnavailable,
			Message: "Cannot connect to LDS API",
			Fields:  map[string]any{"url": url},
			Err:     err,
		}
	default:
		return &Error{
			Kind:    KindUpstreamRejected,
			Status:  http.StatusInternalServerError,
			Message: err.Error(),
			Err:     err,
		}
	}
}

// outcome — метка исхода вызова для метрик.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case llm.IsContentPolicy(err):
		return "content_policy"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrUnreachable):
		return "unreachable"
	default:
		return "error"
	}
}
