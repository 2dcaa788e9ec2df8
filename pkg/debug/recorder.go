package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
)

// Writer создаёт рекордеры операций и хранит общую конфигурацию.
type Writer struct {
	cfg config.DebugLogsConfig
	now func() time.Time
}

// NewWriter создает Writer. Если LogsDir не существует, создаёт её.
func NewWriter(cfg config.DebugLogsConfig) (*Writer, error) {
	cfg = cfg.GetDefaults()
	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	return &Writer{cfg: cfg, now: time.Now}, nil
}

// Start начинает трейс операции. Для nil Writer возвращает nil Recorder,
// все методы которого ничего не делают.
func (w *Writer) Start(operation, input string) *Recorder {
	if w == nil {
		return nil
	}
	started := w.now()
	return &Recorder{
		cfg:     w.cfg,
		started: started,
		trace: Trace{
			RunID:     fmt.Sprintf("%s_%s_%s", operation, started.Format("20060102_150405"), uuid.NewString()[:8]),
			Operation: operation,
			Timestamp: started,
			Input:     input,
		},
		visitedTools: make(map[string]struct{}),
	}
}

// Recorder накапливает трейс одной операции.
//
// Потокобезопасен. Методы nil Recorder ничего не делают, поэтому
// вызывающему не нужно проверять, включена ли запись.
type Recorder struct {
	mu sync.Mutex

	cfg     config.DebugLogsConfig
	started time.Time
	trace   Trace

	visitedTools map[string]struct{}
	errors       []string
}

// RunID возвращает идентификатор трейса.
func (r *Recorder) RunID() string {
	if r == nil {
		return ""
	}
	return r.trace.RunID
}

// RecordLLMCall записывает вызов модели.
func (r *Recorder) RecordLLMCall(step string, msgs []llm.Message, opts llm.GenerateOptions, resp llm.Message, err error, duration time.Duration) {
	if r == nil {
		return
	}

	call := LLMCall{
		Step:        step,
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Format:      formatName(opts.Format),
		Messages:    make([]MessageEntry, len(msgs)),
		Content:     resp.Content,
		ToolCalls:   toolCallInfos(resp.ToolCalls),
		Duration:    duration.Milliseconds(),
	}
	if opts.Schema != nil {
		call.Schema = opts.Schema.Name
	}
	for _, def := range opts.Tools {
		call.Tools = append(call.Tools, def.Name)
	}
	for i, m := range msgs {
		call.Messages[i] = MessageEntry{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  toolCallInfos(m.ToolCalls),
			ToolCallID: m.ToolCallID,
		}
	}
	if err != nil {
		call.Error = err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.LLMCalls = append(r.trace.LLMCalls, call)
	if call.Error != "" {
		r.errors = append(r.errors, fmt.Sprintf("LLM %s: %s", step, call.Error))
	}
}

// RecordToolExecution записывает выполнение инструмента.
func (r *Recorder) RecordToolExecution(exec ToolExecution) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cfg.IncludeToolArgs {
		exec.Args = ""
	}
	if !r.cfg.IncludeToolResults {
		exec.Result = ""
	} else if r.cfg.MaxResultSize > 0 && len(exec.Result) > r.cfg.MaxResultSize {
		exec.Result = truncateString(exec.Result, r.cfg.MaxResultSize) + "... (truncated)"
		exec.ResultTruncated = true
	}

	r.trace.ToolsExecuted = append(r.trace.ToolsExecuted, exec)
	r.visitedTools[exec.Name] = struct{}{}

	if !exec.Success && exec.Error != "" {
		r.errors = append(r.errors, fmt.Sprintf("Tool %s: %s", exec.Name, exec.Error))
	}
}

// Finalize завершает трейс и сохраняет его в файл.
//
// Возвращает путь к файлу. Для nil Recorder возвращает пустой путь.
func (r *Recorder) Finalize(result string, opErr error, now time.Time) (string, error) {
	if r == nil {
		return "", nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.Result = result
	if opErr != nil {
		r.trace.Error = opErr.Error()
	}
	r.trace.Duration = now.Sub(r.started).Milliseconds()
	r.buildSummary()

	data, err := json.MarshalIndent(r.trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal debug trace: %w", err)
	}

	filePath := filepath.Join(r.cfg.LogsDir, r.trace.RunID+".json")
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write debug trace: %w", err)
	}

	return filePath, nil
}

func (r *Recorder) buildSummary() {
	summary := Summary{
		TotalLLMCalls:      len(r.trace.LLMCalls),
		TotalToolsExecuted: len(r.trace.ToolsExecuted),
		Errors:             r.errors,
	}
	for _, c := range r.trace.LLMCalls {
		summary.TotalLLMDuration += c.Duration
	}
	for _, t := range r.trace.ToolsExecuted {
		summary.TotalToolDuration += t.Duration
	}
	for name := range r.visitedTools {
		summary.VisitedTools = append(summary.VisitedTools, name)
	}
	sort.Strings(summary.VisitedTools)

	r.trace.Summary = summary
}

type ctxKey struct{}

// WithRecorder кладёт рекордер в контекст операции.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext возвращает рекордер операции или nil.
func FromContext(ctx context.Context) *Recorder {
	r, _ := ctx.Value(ctxKey{}).(*Recorder)
	return r
}

func formatName(f llm.Format) string {
	if f == llm.FormatText {
		return "text"
	}
	return string(f)
}

func toolCallInfos(calls []llm.ToolCall) []ToolCallInfo {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCallInfo, len(calls))
	for i, tc := range calls {
		out[i] = ToolCallInfo{ID: tc.ID, Name: tc.Name, Args: tc.Args}
	}
	return out
}

// truncateString обрезает строку до maxSize байт, не разрывая руну.
func truncateString(s string, maxSize int) string {
	if len(s) <= maxSize {
		return s
	}
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
