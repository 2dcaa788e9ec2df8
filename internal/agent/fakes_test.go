package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/metrics"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
)

// llmCall — записанный вызов модели.
type llmCall struct {
	Messages []llm.Message
	Options  llm.GenerateOptions
}

func (c llmCall) system() string {
	for _, m := range c.Messages {
		if m.Role == llm.RoleSystem {
			return m.Content
		}
	}
	return ""
}

func (c llmCall) lastUser() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == llm.RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

type fakeReply struct {
	msg llm.Message
	err error
}

func reply(content string) fakeReply {
	return fakeReply{msg: llm.Message{Role: llm.RoleAssistant, Content: content}}
}

func toolCalls(calls ...llm.ToolCall) fakeReply {
	return fakeReply{msg: llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}}
}

func fail(kind error) fakeReply {
	return fakeReply{err: &llm.Error{Kind: kind, StatusCode: 400, Message: "stubbed failure"}}
}

// fakeLLM отвечает по сценарию. Вызовы генерации подсказок узнаются по
// системному промпту и обслуживаются отдельно полем followUp.
type fakeLLM struct {
	mu       sync.Mutex
	script   []fakeReply
	followUp *fakeReply

	calls         []llmCall
	followUpCalls []llmCall
}

func (f *fakeLLM) Generate(_ context.Context, msgs []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := llmCall{
		Messages: append([]llm.Message{}, msgs...),
		Options:  llm.ApplyOptions(llm.GenerateOptions{}, opts...),
	}

	if strings.Contains(call.system(), "專門生成建議") {
		f.followUpCalls = append(f.followUpCalls, call)
		if f.followUp == nil {
			return llm.Message{}, &llm.Error{Kind: llm.ErrUnreachable}
		}
		return f.followUp.msg, f.followUp.err
	}

	f.calls = append(f.calls, call)
	if len(f.calls) > len(f.script) {
		return llm.Message{}, errors.New("unexpected call: no more responses")
	}
	r := f.script[len(f.calls)-1]
	return r.msg, r.err
}

// fakeLDS — LDS без сети.
type fakeLDS struct {
	categories    []string
	categoriesErr error

	resp *lds.Response
	err  error

	pingResp *lds.Response
	pingErr  error

	categoryLocales []string
	forwarded       []string
	bodies          []string
}

func (f *fakeLDS) Forward(_ context.Context, opt lds.Option, body []byte) (*lds.Response, error) {
	f.forwarded = append(f.forwarded, string(opt))
	f.bodies = append(f.bodies, string(body))
	return f.resp, f.err
}

func (f *fakeLDS) ILOCategories(_ context.Context, locale string) ([]string, error) {
	f.categoryLocales = append(f.categoryLocales, locale)
	return f.categories, f.categoriesErr
}

func (f *fakeLDS) Ping(context.Context) (*lds.Response, error) {
	return f.pingResp, f.pingErr
}

func (f *fakeLDS) BaseURL() string { return "https://lds.test/api" }
func (f *fakeLDS) HasToken() bool  { return true }

// fakeCaller отвечает на вызовы инструментов LDS.
type fakeCaller struct {
	body     string
	err      error
	payloads []any
}

func (f *fakeCaller) Call(_ context.Context, _ lds.Option, payload any) ([]byte, error) {
	f.payloads = append(f.payloads, payload)
	return []byte(f.body), f.err
}

// fakeArchive запоминает загрузки.
type fakeArchive struct {
	keys  []string
	types []string
	err   error
}

func (f *fakeArchive) Upload(_ context.Context, key string, _ []byte, contentType string) error {
	f.keys = append(f.keys, key)
	f.types = append(f.types, contentType)
	return f.err
}

func (f *fakeArchive) Key(now time.Time, filename string) string {
	return "documents/" + now.Format("2006/01/02") + "/id-" + filename
}

type testDeps struct {
	llm      *fakeLLM
	lds      *fakeLDS
	registry *tools.Registry
	archive  *fakeArchive
	cfg      func(*Config)
}

func newTestOrchestrator(t *testing.T, d testDeps) *Orchestrator {
	t.Helper()

	if d.llm == nil {
		d.llm = &fakeLLM{}
	}
	if d.lds == nil {
		d.lds = &fakeLDS{categories: []string{"Knowledge", "Skills"}}
	}

	lib, err := prompt.NewLibrary("")
	require.NoError(t, err)

	cfg := Config{
		LLM:      d.llm,
		LDS:      d.lds,
		Prompts:  lib,
		Registry: d.registry,
		Chat:     config.ChatConfig{},
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Log:      zaptest.NewLogger(t).Sugar(),
		Now:      func() time.Time { return time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC) },
	}
	if d.archive != nil {
		cfg.Archive = d.archive
	}
	if d.cfg != nil {
		d.cfg(&cfg)
	}

	o, err := New(cfg)
	require.NoError(t, err)
	return o
}

func requireAgentError(t *testing.T, err error) *Error {
	t.Helper()
	require.Error(t, err)
	e, ok := AsError(err)
	require.True(t, ok, "expected *agent.Error, got %T: %v", err, err)
	return e
}
