// Package metrics объявляет prometheus коллекторы сервиса.
//
// Коллекторы регистрируются в переданном Registerer, а не в глобальном
// реестре, чтобы тесты могли создавать независимые экземпляры.
// Методы безопасны для nil получателя: компонент без метрик просто ничего не пишет.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — набор коллекторов сервиса.
type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	HTTPInFlight  prometheus.Gauge
	LLMCalls      *prometheus.CounterVec
	LLMDuration   *prometheus.HistogramVec
	LLMFallbacks  *prometheus.CounterVec
	LDSCalls      *prometheus.CounterVec
	ChatDecisions *prometheus.CounterVec
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lds_chatbot_http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lds_chatbot_http_request_duration_seconds",
				Help:    "Duration of inbound HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		HTTPInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "lds_chatbot_http_requests_in_flight",
				Help: "Number of inbound HTTP requests being served",
			},
		),
		LLMCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lds_chatbot_llm_calls_total",
				Help: "Total number of chat-completion calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		LLMDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lds_chatbot_llm_call_duration_seconds",
				Help:    "Duration of chat-completion calls in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"operation"},
		),
		LLMFallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lds_chatbot_llm_fallbacks_total",
				Help: "Total number of fallback paths taken (schema, content_policy, default_reply, default_follow_ups)",
			},
			[]string{"operation", "kind"},
		),
		LDSCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lds_chatbot_lds_calls_total",
				Help: "Total number of LDS API calls by option and outcome",
			},
			[]string{"option", "outcome"},
		),
		ChatDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lds_chatbot_chat_decisions_total",
				Help: "Chat gate and stance decisions",
			},
			[]string{"decision"},
		),
	}
}

// ObserveHTTP фиксирует завершённый входящий запрос.
func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveLLM фиксирует вызов LLM.
func (m *Metrics) ObserveLLM(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMCalls.WithLabelValues(operation, outcome).Inc()
	m.LLMDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Fallback фиксирует срабатывание одного из fallback путей.
func (m *Metrics) Fallback(operation, kind string) {
	if m == nil {
		return
	}
	m.LLMFallbacks.WithLabelValues(operation, kind).Inc()
}

// ObserveLDS фиксирует вызов LDS API.
func (m *Metrics) ObserveLDS(option, outcome string) {
	if m == nil {
		return
	}
	m.LDSCalls.WithLabelValues(option, outcome).Inc()
}

// Decision фиксирует решение гейта или выбор режима чата.
func (m *Metrics) Decision(decision string) {
	if m == nil {
		return
	}
	m.ChatDecisions.WithLabelValues(decision).Inc()
}

// InFlight увеличивает счётчик активных запросов и возвращает функцию для уменьшения.
func (m *Metrics) InFlight() func() {
	if m == nil {
		return func() {}
	}
	m.HTTPInFlight.Inc()
	return m.HTTPInFlight.Dec
}
