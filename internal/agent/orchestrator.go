// Package agent реализует оркестратор запросов LDS Chatbot.
//
// Orchestrator собирает промпт из шаблона и данных запроса, вызывает
// модель, проверяет и чинит её JSON и возвращает нормализованный ответ
// или *Error со статусом для клиента. Простые операции проксируют
// справочники LDS.
//
// Состояния между запросами нет: каждый вызов работает только со своими
// данными, поэтому Orchestrator безопасен для конкурентного использования.
//
// Автоматические повторы ровно два: повтор с безопасным промптом после
// отказа по политике контента и откат json_schema → json_object.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/classifier"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/debug"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/document"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/logger"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/metrics"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/s3storage"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
)

// Названия операций в логах и метриках.
const (
	opILO      = "generate_ilos"
	opDP       = "suggest_dp"
	opChat     = "chat"
	opFollowUp = "follow_up"
	opDocument = "analyze_document"
)

// LDS — операции LDS, которые нужны оркестратору.
type LDS interface {
	Forward(ctx context.Context, opt lds.Option, body []byte) (*lds.Response, error)
	ILOCategories(ctx context.Context, locale string) ([]string, error)
	Ping(ctx context.Context) (*lds.Response, error)
	BaseURL() string
	HasToken() bool
}

// Config конфигурация для создания Orchestrator.
type Config struct {
	// LLM — провайдер языковой модели (обязательный)
	LLM llm.Provider

	// LDS — клиент справочников (обязательный)
	LDS LDS

	// Prompts — библиотека шаблонов (обязательный)
	Prompts *prompt.Library

	// Registry — инструменты чата. nil отключает первый раунд с функциями.
	Registry *tools.Registry

	Chat       config.ChatConfig
	Generation config.GenerationConfig
	Document   config.DocumentConfig

	// Archive — архив загруженных документов, опционально.
	Archive s3storage.Archiver

	// Traces — запись JSON трейсов операций, опционально.
	Traces *debug.Writer

	Metrics *metrics.Metrics
	Log     *zap.SugaredLogger

	// Now подменяется в тестах.
	Now func() time.Time
}

// Orchestrator — обработчик всех операций сервиса.
type Orchestrator struct {
	llm      llm.Provider
	lds      LDS
	prompts  *prompt.Library
	registry *tools.Registry

	messages   *classifier.Messages
	chat       config.ChatConfig
	generation config.GenerationConfig
	extractor  *document.Extractor
	archive    s3storage.Archiver
	traces     *debug.Writer

	metrics *metrics.Metrics
	log     *zap.SugaredLogger
	now     func() time.Time
}

// New создаёт Orchestrator с заданной конфигурацией.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("cfg.LLM is required")
	}
	if cfg.LDS == nil {
		return nil, fmt.Errorf("cfg.LDS is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("cfg.Prompts is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	chat := cfg.Chat.GetDefaults()

	return &Orchestrator{
		llm:        cfg.LLM,
		lds:        cfg.LDS,
		prompts:    cfg.Prompts,
		registry:   cfg.Registry,
		messages:   classifier.NewMessages(chat),
		chat:       chat,
		generation: cfg.Generation.GetDefaults(),
		extractor:  document.NewExtractor(cfg.Document),
		archive:    cfg.Archive,
		traces:     cfg.Traces,
		metrics:    cfg.Metrics,
		log:        logger.OrNop(cfg.Log),
		now:        cfg.Now,
	}, nil
}

// MaxUploadBytes возвращает лимит размера загружаемого документа.
func (o *Orchestrator) MaxUploadBytes() int64 {
	return o.extractor.MaxUploadBytes()
}

// render рендерит промпт и возвращает сообщения и его настройки.
func (o *Orchestrator) render(name string, data any) ([]llm.Message, prompt.PromptConfig, error) {
	pf, err := o.prompts.Get(name)
	if err != nil {
		return nil, prompt.PromptConfig{}, err
	}

	rendered, err := pf.RenderMessages(data)
	if err != nil {
		return nil, prompt.PromptConfig{}, fmt.Errorf("render prompt %s: %w", name, err)
	}

	msgs := make([]llm.Message, len(rendered))
	for i, m := range rendered {
		msgs[i] = llm.Message{Role: llm.Role(m.Role), Content: m.Content}
	}
	return msgs, pf.Config, nil
}

// baseOptions переводит настройки промпта в опции вызова. Формат
// задаёт вызывающий.
func baseOptions(pc prompt.PromptConfig) []llm.GenerateOption {
	return []llm.GenerateOption{
		llm.WithTemperature(pc.Temperature),
		llm.WithMaxTokens(pc.MaxTokens),
	}
}

// generate выполняет один вызов модели и пишет метрики.
func (o *Orchestrator) generate(ctx context.Context, op string, msgs []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	start := time.Now()
	resp, err := o.llm.Generate(ctx, msgs, opts...)
	elapsed := time.Since(start)
	o.metrics.ObserveLLM(op, outcome(err), elapsed)
	debug.FromContext(ctx).RecordLLMCall(op, msgs, llm.ApplyOptions(llm.GenerateOptions{}, opts...), resp, err, elapsed)
	return resp, err
}

// generateStructured запрашивает ответ по схеме. Если вызов со схемой
// не удался не из-за политики контента, повторяет его один раз в режиме
// json_object.
func (o *Orchestrator) generateStructured(ctx context.Context, op string, msgs []llm.Message, pc prompt.PromptConfig, schema llm.Schema) (llm.Message, error) {
	resp, err := o.generate(ctx, op, msgs, append(baseOptions(pc), llm.WithJSONSchema(schema))...)
	if err == nil {
		return resp, nil
	}
	if llm.IsContentPolicy(err) || ctx.Err() != nil {
		return llm.Message{}, err
	}

	o.log.Warnw("Schema-constrained call failed, falling back to json_object",
		"operation", op,
		"schema", schema.Name,
		"error", err)
	o.metrics.Fallback(op, "schema")

	return o.generate(ctx, op, msgs, append(baseOptions(pc), llm.WithFormat(llm.FormatJSONObject))...)
}
