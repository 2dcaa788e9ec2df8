// Package openai реализует адаптер llm.Provider поверх go-openai.
//
// Поддерживает OpenAI-совместимые API и Azure OpenAI (deployments + api-version),
// Function Calling и response_format (json_object, json_schema).
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/logger"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
)

// Client реализует интерфейс llm.Provider.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     *zap.SugaredLogger
}

var _ llm.Provider = (*Client)(nil)

// NewClient создает клиент на основе конфигурации модели.
//
// Для provider "azure" ModelName трактуется как имя deployment и
// передаётся без преобразований (дефолтный маппер go-openai вырезает точки,
// а "gpt-4.1" должен остаться "gpt-4.1").
func NewClient(modelDef config.ModelDef, log *zap.SugaredLogger) (*Client, error) {
	var cfg openai.ClientConfig

	switch modelDef.Provider {
	case "azure":
		if modelDef.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires base_url")
		}
		cfg = openai.DefaultAzureConfig(modelDef.APIKey, modelDef.BaseURL)
		if modelDef.APIVersion != "" {
			cfg.APIVersion = modelDef.APIVersion
		}
		cfg.AzureModelMapperFunc = func(model string) string { return model }
	case "openai", "":
		cfg = openai.DefaultConfig(modelDef.APIKey)
		if modelDef.BaseURL != "" {
			cfg.BaseURL = modelDef.BaseURL
		}
	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   modelDef.ModelName,
		timeout: modelDef.Timeout,
		log:     logger.OrNop(log),
	}, nil
}

// Model возвращает имя модели (deployment) клиента.
func (c *Client) Model() string {
	return c.model
}

// Generate выполняет запрос к API и возвращает ответ модели.
//
// Алгоритм:
//  1. Собирает параметры из опций
//  2. Конвертирует сообщения, tools и response_format в формат SDK
//  3. Вызывает API с таймаутом модели
//  4. Классифицирует ошибку или конвертирует ответ обратно
//
// Ответ с finish_reason=content_filter возвращается как llm.ErrContentPolicy.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	startTime := time.Now()
	o := llm.ApplyOptions(llm.GenerateOptions{Model: c.model}, opts...)

	c.log.Debugw("LLM request started",
		"model", o.Model,
		"messages_count", len(messages),
		"tools_count", len(o.Tools),
		"format", string(o.Format))

	req, err := buildRequest(messages, o)
	if err != nil {
		return llm.Message{}, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		classified := classifyError(ctx, err)
		c.log.Warnw("LLM API request failed",
			"error", classified,
			"model", o.Model,
			"format", string(o.Format),
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, classified
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, &llm.Error{Kind: llm.ErrEmptyResponse}
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return llm.Message{}, &llm.Error{
			Kind:    llm.ErrContentPolicy,
			Message: "response stopped by content_filter",
		}
	}

	result := mapFromOpenAI(choice.Message)

	c.log.Infow("LLM response received",
		"model", o.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

func buildRequest(messages []llm.Message, o llm.GenerateOptions) (openai.ChatCompletionRequest, error) {
	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    openaiMsgs,
		Temperature: float32(o.Temperature),
		MaxTokens:   o.MaxTokens,
	}

	switch o.Format {
	case llm.FormatText:
	case llm.FormatJSONObject:
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	case llm.FormatJSONSchema:
		if o.Schema == nil {
			return req, fmt.Errorf("json_schema format requires a schema")
		}
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   o.Schema.Name,
				Schema: schemaMarshaler(o.Schema.Definition),
				Strict: o.Schema.Strict,
			},
		}
	default:
		return req, fmt.Errorf("unsupported response format: %s", o.Format)
	}

	if len(o.Tools) > 0 {
		req.Tools = convertToolsToOpenAI(o.Tools)
		choice := o.ToolChoice
		if choice == "" {
			choice = "auto"
		}
		req.ToolChoice = choice
	}

	return req, nil
}

// schemaMarshaler адаптирует tools.JSONSchema к json.Marshaler, которого ждёт SDK.
type schemaMarshaler tools.JSONSchema

func (s schemaMarshaler) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

// mapToOpenAI конвертирует внутреннее сообщение в формат SDK.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			msg.ToolCalls[i] = openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}
		}
	}

	return msg
}

// mapFromOpenAI конвертирует ответ SDK во внутренний формат.
func mapFromOpenAI(choice openai.ChatCompletionMessage) llm.Message {
	result := llm.Message{
		Role:    llm.Role(choice.Role),
		Content: choice.Content,
	}
	if result.Role == "" {
		result.Role = llm.RoleAssistant
	}

	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	return result
}

// convertToolsToOpenAI конвертирует определения инструментов в формат Function Calling.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}

// classifyError раскладывает ошибку SDK по категориям llm.Err*.
func classifyError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := llm.ErrRejected
		switch {
		case isContentPolicyAPIError(apiErr):
			kind = llm.ErrContentPolicy
		case apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 504:
			kind = llm.ErrTimeout
		case apiErr.HTTPStatusCode == 502 || apiErr.HTTPStatusCode == 503:
			kind = llm.ErrUnreachable
		}
		return &llm.Error{Kind: kind, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		kind := llm.ErrRejected
		if llm.IsContentPolicyText(string(reqErr.Body)) {
			kind = llm.ErrContentPolicy
		}
		return &llm.Error{Kind: kind, StatusCode: reqErr.HTTPStatusCode, Message: truncate(string(reqErr.Body), 300), Err: err}
	}

	if errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled {
		return &llm.Error{Kind: llm.ErrCanceled, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Kind: llm.ErrTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &llm.Error{Kind: llm.ErrTimeout, Err: err}
	}

	return &llm.Error{Kind: llm.ErrUnreachable, Err: err}
}

func isContentPolicyAPIError(e *openai.APIError) bool {
	if e.Code != nil && llm.IsContentPolicyText(fmt.Sprint(e.Code)) {
		return true
	}
	if e.InnerError != nil && llm.IsContentPolicyText(e.InnerError.Code) {
		return true
	}
	return llm.IsContentPolicyText(e.Message)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
