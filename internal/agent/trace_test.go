package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/debug"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools/std"
)

func readSingleTrace(t *testing.T, dir string) debug.Trace {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var trace debug.Trace
	require.NoError(t, json.Unmarshal(raw, &trace))
	return trace
}

func TestChat_WritesTrace(t *testing.T) {
	dir := t.TempDir()
	writer, err := debug.NewWriter(config.DebugLogsConfig{LogsDir: dir, IncludeToolArgs: true, IncludeToolResults: true})
	require.NoError(t, err)

	caller := &fakeCaller{body: `["Knowledge"]`}
	fake := &fakeLLM{script: []fakeReply{
		toolCalls(llm.ToolCall{ID: "call_1", Name: std.ILOCategoryToolName, Args: `{"locale":"en"}`}),
		reply(`{"chat_message_reply": {"text": "只有一種類別。"}, "actions": []}`),
	}}
	o := newTestOrchestrator(t, testDeps{
		llm:      fake,
		registry: newToolRegistry(t, caller),
		cfg:      func(c *Config) { c.Traces = writer },
	})

	_, err = o.Chat(context.Background(), ChatRequest{Message: "ILO 有哪些類別？"})
	require.NoError(t, err)

	trace := readSingleTrace(t, dir)
	assert.Equal(t, opChat, trace.Operation)
	assert.Equal(t, "ILO 有哪些類別？", trace.Input)
	assert.Contains(t, trace.Result, "只有一種類別。")
	assert.Empty(t, trace.Error)

	require.Len(t, trace.LLMCalls, 3)
	assert.Equal(t, []string{std.ILOCategoryToolName}, trace.LLMCalls[0].Tools)
	assert.Equal(t, "text", trace.LLMCalls[0].Format)
	require.Len(t, trace.LLMCalls[0].ToolCalls, 1)
	assert.Equal(t, "call_1", trace.LLMCalls[0].ToolCalls[0].ID)
	assert.Equal(t, "json_schema", trace.LLMCalls[1].Format)
	assert.Equal(t, "lds_chatbot_response", trace.LLMCalls[1].Schema)
	assert.Equal(t, opFollowUp, trace.LLMCalls[2].Step)
	assert.NotEmpty(t, trace.LLMCalls[2].Error)

	require.Len(t, trace.ToolsExecuted, 1)
	assert.True(t, trace.ToolsExecuted[0].Success)
	assert.Equal(t, `{"locale":"en"}`, trace.ToolsExecuted[0].Args)
	assert.Equal(t, `["Knowledge"]`, trace.ToolsExecuted[0].Result)

	assert.Equal(t, 3, trace.Summary.TotalLLMCalls)
	assert.Equal(t, []string{std.ILOCategoryToolName}, trace.Summary.VisitedTools)
	assert.Len(t, trace.Summary.Errors, 1)
}

func TestGenerateILOs_TraceRecordsError(t *testing.T) {
	dir := t.TempDir()
	writer, err := debug.NewWriter(config.DebugLogsConfig{LogsDir: dir})
	require.NoError(t, err)

	fake := &fakeLLM{script: []fakeReply{reply(`{"ilos": []}`)}}
	o := newTestOrchestrator(t, testDeps{llm: fake, cfg: func(c *Config) { c.Traces = writer }})

	_, err = o.GenerateILOs(context.Background(), ILORequest{Topic: "Photosynthesis"})
	require.Error(t, err)

	trace := readSingleTrace(t, dir)
	assert.Equal(t, opILO, trace.Operation)
	assert.Equal(t, "Photosynthesis", trace.Input)
	assert.NotEmpty(t, trace.Error)
	assert.Empty(t, trace.Result)
	require.Len(t, trace.LLMCalls, 1)
	assert.Equal(t, "json_schema", trace.LLMCalls[0].Format)
}

func TestTracesDisabledWritesNothing(t *testing.T) {
	fake := &fakeLLM{script: []fakeReply{reply(chatAnswer)}}
	o := newTestOrchestrator(t, testDeps{llm: fake})

	ctx, rec := o.startTrace(context.Background(), opChat, "x")
	assert.Nil(t, rec)
	assert.Nil(t, debug.FromContext(ctx))
	o.finishTrace(rec, nil, nil)
}
