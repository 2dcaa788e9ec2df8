package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
)

// Forwarded — ответ LDS для клиента: статус и JSON тело.
type Forwarded struct {
	Status int
	Body   json.RawMessage
}

// Forward запрашивает справочник opt с телом {"locale": locale}.
//
// JSON ответ LDS возвращается с тем же статусом без изменений. Не-JSON
// тело оборачивается в JSON с описанием ошибки. Сбой транспорта даёт
// *Error: 504 при таймауте, 503 при недоступности.
func (o *Orchestrator) Forward(ctx context.Context, opt lds.Option, locale string) (*Forwarded, error) {
	return o.ForwardRaw(ctx, opt, lds.LocaleBody(locale))
}

// ForwardRaw пересылает тело запроса клиента в справочник opt без изменений.
func (o *Orchestrator) ForwardRaw(ctx context.Context, opt lds.Option, body []byte) (*Forwarded, error) {
	resp, err := o.lds.Forward(ctx, opt, body)
	if err != nil {
		o.metrics.ObserveLDS(string(opt), lds.KindOf(err).String())
		return nil, fromLDS(err)
	}
	o.metrics.ObserveLDS(string(opt), fmt.Sprint(resp.StatusCode))

	if resp.IsJSON() {
		if !resp.OK() {
			o.log.Warnw("LDS returned error status",
				"option", string(opt),
				"status", resp.StatusCode,
				"body", lds.Preview(resp.Body, 200))
		}
		return &Forwarded{Status: resp.StatusCode, Body: json.RawMessage(resp.Body)}, nil
	}

	o.log.Errorw("LDS returned non-JSON body",
		"option", string(opt),
		"status", resp.StatusCode,
		"content_type", resp.ContentType,
		"raw", lds.Preview(resp.Body, 200))

	if resp.OK() {
		return nil, &Error{
			Kind:    KindMalformedUpstreamOutput,
			Status:  http.StatusInternalServerError,
			Message: "Invalid JSON response from LDS API",
			Details: fmt.Sprintf("LDS API returned non-JSON content. Status: %d", resp.StatusCode),
			Fields:  map[string]any{"raw_preview": lds.Preview(resp.Body, 200)},
		}
	}

	fields := map[string]any{"url": resp.URL, "status_code": resp.StatusCode}
	if resp.StatusCode == http.StatusUnauthorized {
		fields["auth_issue"] = true
	}
	return nil, &Error{
		Kind:    KindUpstreamRejected,
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("LDS API error %d", resp.StatusCode),
		Details: lds.Preview(resp.Body, 500),
		Fields:  fields,
	}
}

// HealthReport — отчёт health-пробы.
type HealthReport struct {
	Status  string         `json:"status"`
	Backend string         `json:"backend"`
	Config  HealthConfig   `json:"config"`
	LDSAPI  map[string]any `json:"lds_api"`
}

// HealthConfig — видимая часть конфигурации без секретов.
type HealthConfig struct {
	LDSBaseURL         string `json:"lds_base_url"`
	LDSTokenSet        bool   `json:"lds_token_set"`
	LLMClientAvailable bool   `json:"llm_client_available"`
}

// Health проверяет связь с LDS. Недоступность LDS не ошибка: она
// отражается в поле lds_api.
func (o *Orchestrator) Health(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:  "ok",
		Backend: "running",
		Config: HealthConfig{
			LDSBaseURL:         o.lds.BaseURL(),
			LDSTokenSet:        o.lds.HasToken(),
			LLMClientAvailable: o.llm != nil,
		},
	}

	resp, err := o.lds.Ping(ctx)
	if err != nil {
		o.log.Warnw("LDS health check failed", "error", err)
		report.LDSAPI = map[string]any{
			"status": "error",
			"error":  err.Error(),
			"type":   lds.KindOf(err).String(),
		}
		return report
	}

	status := "connected"
	if !resp.OK() {
		status = "error"
	}
	report.LDSAPI = map[string]any{
		"status":      status,
		"status_code": resp.StatusCode,
		"url":         resp.URL,
	}
	return report
}
