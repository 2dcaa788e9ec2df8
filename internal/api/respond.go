package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/agent"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeRaw отдаёт готовое JSON тело без повторной сериализации.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError переводит ошибку в JSON тело. *agent.Error несёт свой
// статус, прочие ошибки дают 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := agent.AsError(err); ok {
		if e.Status >= http.StatusInternalServerError {
			s.log.Errorw("Request failed",
				"request_id", RequestID(r.Context()),
				"kind", string(e.Kind),
				"status", e.Status,
				"error", err)
		}
		writeJSON(w, e.Status, e.Body())
		return
	}

	s.log.Errorw("Request failed", "request_id", RequestID(r.Context()), "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
}

// decodeJSON разбирает тело запроса. Пустое тело допустимо и оставляет v
// без изменений.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// allowMethods отвечает 204 на OPTIONS и 405 на неразрешённые методы.
// Возвращает true, если запрос нужно обрабатывать дальше.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	return false
}
