package debug

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
)

func newTestWriter(t *testing.T, cfg config.DebugLogsConfig) *Writer {
	t.Helper()
	cfg.LogsDir = filepath.Join(t.TempDir(), "traces")
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC) }
	return w
}

func readTrace(t *testing.T, path string) Trace {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var trace Trace
	require.NoError(t, json.Unmarshal(raw, &trace))
	return trace
}

func TestRecorder_FullTrace(t *testing.T) {
	w := newTestWriter(t, config.DebugLogsConfig{IncludeToolArgs: true, IncludeToolResults: true})
	rec := w.Start("chat", "ILO 有哪些類別？")
	assert.True(t, strings.HasPrefix(rec.RunID(), "chat_20250520_090000_"))

	opts := llm.ApplyOptions(llm.GenerateOptions{Model: "gpt-4.1"},
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(3000),
		llm.WithTools([]tools.ToolDefinition{{Name: "ILO_get_category"}}))
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "system"},
		{Role: llm.RoleUser, Content: "ILO 有哪些類別？"},
	}
	resp := llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "ILO_get_category", Args: "{}"}}}
	rec.RecordLLMCall("chat", msgs, opts, resp, nil, 120*time.Millisecond)

	rec.RecordToolExecution(ToolExecution{Name: "ILO_get_category", Args: "{}", Result: `["Knowledge"]`, Duration: 30, Success: true})
	rec.RecordLLMCall("follow_up", msgs, llm.ApplyOptions(llm.GenerateOptions{}, llm.WithFormat(llm.FormatJSONObject)),
		llm.Message{}, errors.New("timeout"), 80*time.Millisecond)

	path, err := rec.Finalize(`{"ok":true}`, nil, time.Date(2025, 5, 20, 9, 0, 2, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, rec.RunID()+".json", filepath.Base(path))

	trace := readTrace(t, path)
	assert.Equal(t, "chat", trace.Operation)
	assert.Equal(t, int64(2000), trace.Duration)
	assert.Equal(t, `{"ok":true}`, trace.Result)

	require.Len(t, trace.LLMCalls, 2)
	first := trace.LLMCalls[0]
	assert.Equal(t, "gpt-4.1", first.Model)
	assert.Equal(t, "text", first.Format)
	assert.Equal(t, 3000, first.MaxTokens)
	assert.Equal(t, []string{"ILO_get_category"}, first.Tools)
	assert.Len(t, first.Messages, 2)
	require.Len(t, first.ToolCalls, 1)
	assert.Equal(t, "call_1", first.ToolCalls[0].ID)
	assert.Equal(t, "json_object", trace.LLMCalls[1].Format)
	assert.Equal(t, "timeout", trace.LLMCalls[1].Error)

	assert.Equal(t, 2, trace.Summary.TotalLLMCalls)
	assert.Equal(t, 1, trace.Summary.TotalToolsExecuted)
	assert.Equal(t, int64(200), trace.Summary.TotalLLMDuration)
	assert.Equal(t, int64(30), trace.Summary.TotalToolDuration)
	assert.Equal(t, []string{"ILO_get_category"}, trace.Summary.VisitedTools)
	assert.Equal(t, []string{"LLM follow_up: timeout"}, trace.Summary.Errors)
}

func TestRecorder_ToolDataPolicy(t *testing.T) {
	tests := []struct {
		name          string
		cfg           config.DebugLogsConfig
		wantArgs      string
		wantResult    string
		wantTruncated bool
	}{
		{"excluded", config.DebugLogsConfig{}, "", "", false},
		{"full", config.DebugLogsConfig{IncludeToolArgs: true, IncludeToolResults: true, MaxResultSize: 100}, `{"locale":"en"}`, "課程設計", false},
		{"truncated", config.DebugLogsConfig{IncludeToolResults: true, MaxResultSize: 4}, "", "課... (truncated)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestWriter(t, tt.cfg).Start("chat", "")
			rec.RecordToolExecution(ToolExecution{Name: "x", Args: `{"locale":"en"}`, Result: "課程設計", Success: true})

			path, err := rec.Finalize("", nil, time.Now())
			require.NoError(t, err)

			trace := readTrace(t, path)
			require.Len(t, trace.ToolsExecuted, 1)
			assert.Equal(t, tt.wantArgs, trace.ToolsExecuted[0].Args)
			assert.Equal(t, tt.wantResult, trace.ToolsExecuted[0].Result)
			assert.Equal(t, tt.wantTruncated, trace.ToolsExecuted[0].ResultTruncated)
		})
	}
}

func TestRecorder_FailedOperation(t *testing.T) {
	rec := newTestWriter(t, config.DebugLogsConfig{}).Start("suggest_dp", "Water")
	rec.RecordToolExecution(ToolExecution{Name: "x", Success: false, Error: "boom"})

	path, err := rec.Finalize("", errors.New("malformed"), time.Now())
	require.NoError(t, err)

	trace := readTrace(t, path)
	assert.Equal(t, "malformed", trace.Error)
	assert.Equal(t, []string{"Tool x: boom"}, trace.Summary.Errors)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var w *Writer
	rec := w.Start("chat", "hi")
	assert.Nil(t, rec)

	rec.RecordLLMCall("chat", nil, llm.GenerateOptions{}, llm.Message{}, nil, 0)
	rec.RecordToolExecution(ToolExecution{Name: "x"})
	assert.Empty(t, rec.RunID())

	path, err := rec.Finalize("", nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, path)

	ctx := WithRecorder(context.Background(), rec)
	assert.Nil(t, FromContext(ctx))
}

func TestContextRoundTrip(t *testing.T) {
	rec := newTestWriter(t, config.DebugLogsConfig{}).Start("chat", "")
	assert.Same(t, rec, FromContext(WithRecorder(context.Background(), rec)))
}

func TestNewWriter_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	w, err := NewWriter(config.DebugLogsConfig{LogsDir: dir})
	require.NoError(t, err)
	assert.Equal(t, 5000, w.cfg.MaxResultSize)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
