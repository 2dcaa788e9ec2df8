package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/structured"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// iloCount — сколько ILO возвращает генерация.
const iloCount = 3

// Ответ клиенту, когда и безопасный промпт отклонён фильтром контента.
const (
	contentPolicyMessage = "內容過濾錯誤：請嘗試修改輸入內容或稍後再試"
	contentPolicyDetails = "Azure OpenAI 的內容過濾系統阻止了此請求。請確保輸入內容符合教育用途規範。"
)

// rawPreviewLen ограничивает сырой ответ модели в теле ошибки.
const rawPreviewLen = 500

// ILORequest — параметры генерации ILO. Пустые поля заменяются дефолтами.
type ILORequest struct {
	Topic                string `json:"topic"`
	Description          string `json:"description"`
	Subject              string `json:"subject"`
	Grade                string `json:"grade"`
	BloomLevel           string `json:"bloom_level"`
	ActionVerb           string `json:"action_verb"`
	DisciplinaryPractice string `json:"disciplinary_practice"`
	Locale               string `json:"locale"` // Локаль справочника категорий
}

func (r ILORequest) withDefaults() ILORequest {
	r.ActionVerb = strings.TrimSpace(r.ActionVerb)
	r.Topic = orDefault(r.Topic, "N/A")
	r.Grade = orDefault(r.Grade, "Secondary School")
	r.BloomLevel = orDefault(r.BloomLevel, "Understand")
	r.DisciplinaryPractice = orDefault(r.DisciplinaryPractice, "General Inquiry")
	return r
}

// DPRequest — параметры подбора дисциплинарной практики.
type DPRequest struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

func (r DPRequest) withDefaults() DPRequest {
	r.Topic = orDefault(r.Topic, "General Topic")
	r.Description = orDefault(r.Description, "No description provided.")
	r.Subject = orDefault(r.Subject, "General Studies")
	return r
}

// GenerateILOs генерирует ровно 3 ILO.
//
// Алгоритм:
//  1. Получает категории ILO у LDS (или берёт запасной список)
//  2. Вызывает модель со схемой ilos, при сбое схемы повторяет в json_object
//  3. При отказе по политике контента один раз повторяет с безопасным промптом
//  4. Разбирает ответ с поиском массива по алиасам
//
// Число валидных элементов, отличное от 3, даёт *Error
// MalformedUpstreamOutput. Элементы не дополняются и не отбрасываются.
func (o *Orchestrator) GenerateILOs(ctx context.Context, req ILORequest) ([]structured.ILO, error) {
	ctx, rec := o.startTrace(ctx, opILO, req.Topic)
	ilos, err := o.generateILOs(ctx, req)
	o.finishTrace(rec, ilos, err)
	return ilos, err
}

func (o *Orchestrator) generateILOs(ctx context.Context, req ILORequest) ([]structured.ILO, error) {
	req = req.withDefaults()

	data := prompt.ILOData{
		Topic:                req.Topic,
		Description:          req.Description,
		Subject:              req.Subject,
		Grade:                req.Grade,
		BloomLevel:           req.BloomLevel,
		ActionVerb:           req.ActionVerb,
		DisciplinaryPractice: req.DisciplinaryPractice,
		Categories:           o.iloCategories(ctx, req.Locale),
	}

	msgs, pc, err := o.render(prompt.ILOGeneration, data)
	if err != nil {
		return nil, err
	}

	resp, err := o.generateStructured(ctx, opILO, msgs, pc, structured.ILOSchema())
	if err != nil {
		if !llm.IsContentPolicy(err) {
			return nil, fromLLM(err)
		}

		o.log.Warnw("ILO generation blocked by content policy, retrying with safe prompt",
			"topic", req.Topic,
			"error", err)
		o.metrics.Fallback(opILO, "content_policy")

		resp, err = o.generateSafeILOs(ctx, data)
		if err != nil {
			return nil, &Error{
				Kind:    KindUpstreamRejected,
				Status:  http.StatusBadRequest,
				Message: contentPolicyMessage,
				Details: contentPolicyDetails,
				Err:     err,
			}
		}
	}

	ilos, err := o.parseILOs(resp.Content)
	if err != nil {
		return nil, err
	}

	o.log.Infow("ILOs generated", "count", len(ilos), "bloom_level", req.BloomLevel)
	return ilos, nil
}

func (o *Orchestrator) generateSafeILOs(ctx context.Context, data prompt.ILOData) (llm.Message, error) {
	msgs, pc, err := o.render(prompt.ILOGenerationSafe, data)
	if err != nil {
		return llm.Message{}, err
	}
	return o.generate(ctx, opILO, msgs, append(baseOptions(pc), llm.WithFormat(llm.FormatJSONObject))...)
}

func (o *Orchestrator) parseILOs(content string) ([]structured.ILO, error) {
	ilos, err := structured.ExtractStatements(content)
	switch {
	case errors.Is(err, structured.ErrNoArray):
		doc, _ := structured.Decode(content)
		o.log.Warnw("ILO response has no array", "raw", utils.Truncate(content, 200))
		return nil, malformed("Invalid response format", map[string]any{"data": doc})
	case err != nil:
		o.log.Warnw("ILO response is not JSON", "raw", utils.Truncate(content, 200))
		e := malformed("Failed to parse response", map[string]any{"raw": utils.Truncate(content, rawPreviewLen)})
		e.Details = err.Error()
		return nil, e
	}

	if len(ilos) < iloCount {
		o.log.Warnw("Not enough valid ILOs", "valid", len(ilos))
		return nil, malformed("No valid ILOs generated", map[string]any{"raw": utils.Truncate(content, rawPreviewLen)})
	}
	if len(ilos) > iloCount {
		o.log.Warnw("Too many ILOs", "valid", len(ilos))
		return nil, malformed("Invalid response format", map[string]any{"raw": utils.Truncate(content, rawPreviewLen)})
	}
	return ilos, nil
}

// iloCategories возвращает категории ILO из LDS или запасной список.
func (o *Orchestrator) iloCategories(ctx context.Context, locale string) []string {
	if !o.generation.ShouldFetchCategories() {
		return o.generation.FallbackCategories
	}

	categories, err := o.lds.ILOCategories(ctx, locale)
	if err != nil {
		o.metrics.ObserveLDS(string(lds.OptionILOCategories), lds.KindOf(err).String())
		o.log.Warnw("Failed to fetch ILO categories, using fallback",
			"error", err,
			"fallback", o.generation.FallbackCategories)
		return o.generation.FallbackCategories
	}

	o.metrics.ObserveLDS(string(lds.OptionILOCategories), "200")
	return categories
}

// SuggestDP подбирает одну дисциплинарную практику из шести.
//
// Выбор целиком делает модель, оркестратор только проверяет форму ответа.
func (o *Orchestrator) SuggestDP(ctx context.Context, req DPRequest) (structured.DPRecommendation, error) {
	ctx, rec := o.startTrace(ctx, opDP, req.Topic)
	dp, err := o.suggestDP(ctx, req)
	o.finishTrace(rec, dp, err)
	return dp, err
}

func (o *Orchestrator) suggestDP(ctx context.Context, req DPRequest) (structured.DPRecommendation, error) {
	req = req.withDefaults()

	msgs, pc, err := o.render(prompt.DPSuggestion, prompt.DPData{
		Topic:       req.Topic,
		Description: req.Description,
		Subject:     req.Subject,
	})
	if err != nil {
		return structured.DPRecommendation{}, err
	}

	resp, err := o.generateStructured(ctx, opDP, msgs, pc, structured.DPSchema())
	if err != nil {
		return structured.DPRecommendation{}, fromLLM(err)
	}

	dp, err := structured.DecodeDP(resp.Content)
	if err != nil {
		o.log.Warnw("Invalid DP recommendation", "error", err, "raw", utils.Truncate(resp.Content, 200))
		e := malformed("Invalid DP recommendation", map[string]any{"raw": utils.Truncate(resp.Content, rawPreviewLen)})
		e.Details = err.Error()
		return structured.DPRecommendation{}, e
	}

	return dp, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
