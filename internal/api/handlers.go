package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/agent"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
)

// maxJSONBody ограничивает JSON тело запроса.
const maxJSONBody = 1 << 20

var optionRoutes = map[string]lds.Option{
	"/api/subjects":              lds.OptionSubjects,
	"/api/grade-levels":          lds.OptionGradeLevels,
	"/api/bloom-taxonomy-levels": lds.OptionBloomLevels,
	"/api/bloom-taxonomy-verbs":  lds.OptionBloomVerbs,
	"/api/ilo-categories":        lds.OptionILOCategories,
}

// handleOption проксирует справочник LDS.
//
// Локаль берётся из поля locale тела POST, затем из query параметра
// locale, затем из настроек.
func (s *Server) handleOption(opt lds.Option) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowMethods(w, r, http.MethodGet, http.MethodPost) {
			return
		}

		locale := ""
		if r.Method == http.MethodPost {
			var body struct {
				Locale string `json:"locale"`
			}
			// Невалидное тело не ошибка: локаль просто не задана
			_ = decodeJSON(r, &body)
			locale = strings.TrimSpace(body.Locale)
		}
		if locale == "" {
			locale = strings.TrimSpace(r.URL.Query().Get("locale"))
		}
		if locale == "" {
			locale = s.defaultLocale
		}

		resp, err := s.svc.Forward(r.Context(), opt, locale)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeRaw(w, resp.Status, resp.Body)
	})
}

func (s *Server) handleILOPatterns(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "Request body too large"})
		return
	}
	if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	resp, err := s.svc.ForwardRaw(r.Context(), lds.OptionILOPatterns, body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, resp.Status, resp.Body)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req agent.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	resp, err := s.svc.Chat(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggestDP(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req agent.DPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	resp, err := s.svc.SuggestDP(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateILOs(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req agent.ILORequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid JSON body"})
		return
	}

	ilos, err := s.svc.GenerateILOs(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ilos)
}

// handleAnalyzeDocument принимает multipart форму: file, message,
// subject, grade, topic.
func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	limit := s.svc.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "文件過大"})
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			s.log.Warnw("Failed to parse multipart form", "error", err)
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "沒有上傳文件"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "沒有上傳文件"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.svc.AnalyzeDocument(r.Context(), agent.DocumentRequest{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Message:     strings.TrimSpace(r.FormValue("message")),
		Subject:     strings.TrimSpace(r.FormValue("subject")),
		Grade:       strings.TrimSpace(r.FormValue("grade")),
		Topic:       strings.TrimSpace(r.FormValue("topic")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Health(r.Context()))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "LDS Chatbot backend is running.",
	})
}
