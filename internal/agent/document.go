package agent

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/document"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/structured"
)

// defaultDocumentQuestion подставляется, если пользователь не задал вопрос.
const defaultDocumentQuestion = "請分析這個教學文件並提供改進建議"

// DocumentRequest — загруженный документ и контекст курса.
type DocumentRequest struct {
	Filename    string
	ContentType string
	Data        []byte

	Message string
	Subject string
	Grade   string
	Topic   string
}

// DocumentAnalysis — результат анализа документа.
type DocumentAnalysis struct {
	Analysis string              `json:"analysis"`
	Filename string              `json:"filename"`
	Actions  []structured.Action `json:"actions"`
}

// AnalyzeDocument извлекает текст документа и просит модель дать
// рекомендации по учебному дизайну.
//
// Неподдерживаемый формат даёт 415, слишком короткий текст 400.
// При включённом архиве исходный файл сохраняется в S3, ошибка архива
// только логируется.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, req DocumentRequest) (*DocumentAnalysis, error) {
	ctx, rec := o.startTrace(ctx, opDocument, req.Filename)
	analysis, err := o.analyzeDocument(ctx, req)
	o.finishTrace(rec, analysis, err)
	return analysis, err
}

func (o *Orchestrator) analyzeDocument(ctx context.Context, req DocumentRequest) (*DocumentAnalysis, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, invalidInput(http.StatusBadRequest, "文件為空")
	}

	doc, err := o.extractor.Extract(req.Filename, req.Data)
	switch {
	case errors.Is(err, document.ErrUnsupportedFormat):
		return nil, invalidInput(http.StatusUnsupportedMediaType, "不支援的文件格式: "+document.Extension(req.Filename))
	case errors.Is(err, document.ErrTooShort):
		return nil, invalidInput(http.StatusBadRequest, "文件內容過少或無法提取文字")
	case err != nil:
		return nil, err
	}

	o.archiveDocument(ctx, doc.Filename, req)

	var contextLines []string
	for _, kv := range [][2]string{
		{"科目", req.Subject},
		{"年級", req.Grade},
		{"課題", req.Topic},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			contextLines = append(contextLines, kv[0]+"："+v)
		}
	}

	question := strings.TrimSpace(req.Message)
	if question == "" {
		question = defaultDocumentQuestion
	}

	msgs, pc, err := o.render(prompt.DocumentAnalysis, prompt.DocumentData{
		Context:  contextLines,
		Filename: doc.Filename,
		Content:  doc.Text,
		Question: question,
	})
	if err != nil {
		return nil, err
	}

	resp, err := o.generate(ctx, opDocument, msgs, baseOptions(pc)...)
	if err != nil {
		o.log.Errorw("Document analysis failed", "filename", doc.Filename, "error", err)
		e := fromLLM(err)
		e.Status = http.StatusInternalServerError
		e.Message = "AI 分析失敗：" + err.Error()
		return nil, e
	}

	o.log.Infow("Document analyzed",
		"filename", doc.Filename,
		"truncated", doc.Truncated,
		"analysis_length", len(resp.Content))

	return &DocumentAnalysis{
		Analysis: resp.Content,
		Filename: doc.Filename,
		Actions:  []structured.Action{},
	}, nil
}

func (o *Orchestrator) archiveDocument(ctx context.Context, filename string, req DocumentRequest) {
	if o.archive == nil {
		return
	}

	key := o.archive.Key(o.now(), filename)
	if err := o.archive.Upload(ctx, key, req.Data, req.ContentType); err != nil {
		o.log.Warnw("Failed to archive document", "key", key, "error", err)
		return
	}
	o.log.Infow("Document archived", "key", key, "bytes", len(req.Data))
}
