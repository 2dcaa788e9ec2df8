package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
)

const lessonPlan = "中二科學課程：光合作用\n學習目標：學生能解釋光合作用的過程。\n活動：小組實驗與匯報。"

func TestAnalyzeDocument(t *testing.T) {
	fake := &fakeLLM{script: []fakeReply{reply("這份教案的學習目標清晰，建議加入評量準則。")}}
	archive := &fakeArchive{}
	o := newTestOrchestrator(t, testDeps{llm: fake, archive: archive})

	got, err := o.AnalyzeDocument(context.Background(), DocumentRequest{
		Filename:    "../教案 v2.md",
		ContentType: "text/markdown",
		Data:        []byte(lessonPlan),
		Subject:     "科學",
		Grade:       "中二",
	})
	require.NoError(t, err)

	assert.Equal(t, "這份教案的學習目標清晰，建議加入評量準則。", got.Analysis)
	assert.Equal(t, "教案_v2.md", got.Filename)
	assert.NotNil(t, got.Actions)
	assert.Empty(t, got.Actions)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, 0.5, call.Options.Temperature)
	assert.Equal(t, 1500, call.Options.MaxTokens)
	assert.Equal(t, llm.FormatText, call.Options.Format)

	user := call.lastUser()
	assert.Contains(t, user, "科目：科學")
	assert.Contains(t, user, "年級：中二")
	assert.NotContains(t, user, "課題：")
	assert.Contains(t, user, "文件名稱：教案_v2.md")
	assert.Contains(t, user, "學生能解釋光合作用的過程")
	assert.Contains(t, user, "用戶問題："+defaultDocumentQuestion)

	assert.Equal(t, []string{"documents/2025/05/20/id-教案_v2.md"}, archive.keys)
	assert.Equal(t, []string{"text/markdown"}, archive.types)
}

func TestAnalyzeDocument_CustomQuestionAndArchiveFailure(t *testing.T) {
	fake := &fakeLLM{script: []fakeReply{reply("ok")}}
	archive := &fakeArchive{err: errors.New("bucket not found")}
	o := newTestOrchestrator(t, testDeps{llm: fake, archive: archive})

	got, err := o.AnalyzeDocument(context.Background(), DocumentRequest{
		Filename: "plan.txt",
		Data:     []byte(lessonPlan),
		Message:  "評量方式是否合適？",
		Topic:    "光合作用",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Analysis)
	assert.Len(t, archive.keys, 1)
	assert.Contains(t, fake.calls[0].lastUser(), "用戶問題：評量方式是否合適？")
	assert.Contains(t, fake.calls[0].lastUser(), "課題：光合作用")
}

func TestAnalyzeDocument_Truncates(t *testing.T) {
	fake := &fakeLLM{script: []fakeReply{reply("ok")}}
	o := newTestOrchestrator(t, testDeps{llm: fake})

	long := strings.Repeat("課", 10050)
	_, err := o.AnalyzeDocument(context.Background(), DocumentRequest{Filename: "long.txt", Data: []byte(long)})
	require.NoError(t, err)

	user := fake.calls[0].lastUser()
	assert.Contains(t, user, "（內容已截斷）")
	assert.NotContains(t, user, strings.Repeat("課", 10001))
}

func TestAnalyzeDocument_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     string
		status   int
		message  string
	}{
		{"empty filename", "", lessonPlan, 400, "文件為空"},
		{"pdf", "plan.pdf", lessonPlan, 415, "不支援的文件格式: pdf"},
		{"docx", "Plan.DOCX", lessonPlan, 415, "不支援的文件格式: docx"},
		{"unknown extension", "plan.exe", lessonPlan, 415, "不支援的文件格式: exe"},
		{"too short", "plan.txt", " 短 ", 400, "文件內容過少或無法提取文字"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeLLM{}
			archive := &fakeArchive{}
			o := newTestOrchestrator(t, testDeps{llm: fake, archive: archive})

			_, err := o.AnalyzeDocument(context.Background(), DocumentRequest{Filename: tt.filename, Data: []byte(tt.data)})
			e := requireAgentError(t, err)
			assert.Equal(t, KindInvalidInput, e.Kind)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.message, e.Message)

			assert.Empty(t, fake.calls)
			assert.Empty(t, archive.keys)
		})
	}
}

func TestAnalyzeDocument_LLMFailure(t *testing.T) {
	fake := &fakeLLM{script: []fakeReply{fail(llm.ErrTimeout)}}
	o := newTestOrchestrator(t, testDeps{llm: fake})

	_, err := o.AnalyzeDocument(context.Background(), DocumentRequest{Filename: "plan.txt", Data: []byte(lessonPlan)})
	e := requireAgentError(t, err)
	assert.Equal(t, 500, e.Status)
	assert.Equal(t, KindUpstreamTimeout, e.Kind)
	assert.True(t, strings.HasPrefix(e.Message, "AI 分析失敗："))
}
