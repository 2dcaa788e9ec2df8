// Package document извлекает текст из загруженных учебных документов.
//
// Поддерживаются только текстовые форматы; тип файла определяется
// правилами document.file_rules через classifier.Engine.
package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/classifier"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// Теги правил file_rules.
const (
	TagText        = "text"
	TagUnsupported = "unsupported"
)

var (
	// ErrUnsupportedFormat — формат известен, но текст из него не извлекается.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrTooShort — в документе слишком мало текста для анализа.
	ErrTooShort = errors.New("document content is too short or could not be extracted")
)

// Document — извлечённый текст документа.
type Document struct {
	Filename  string
	Text      string
	Truncated bool
}

// Extractor извлекает и усекает текст документов.
type Extractor struct {
	cfg    config.DocumentConfig
	engine *classifier.Engine
}

// NewExtractor создает экстрактор. Пустые поля конфигурации заменяются дефолтами.
func NewExtractor(cfg config.DocumentConfig) *Extractor {
	cfg = cfg.GetDefaults()
	return &Extractor{cfg: cfg, engine: classifier.New(cfg.FileRules)}
}

// MaxUploadBytes возвращает лимит размера загрузки.
func (e *Extractor) MaxUploadBytes() int64 {
	return int64(e.cfg.MaxUploadMB) << 20
}

// Extract извлекает текст из содержимого файла.
//
// Невалидные UTF-8 последовательности и BOM удаляются. Текст длиннее
// max_chars усекается с меткой truncate_label.
func (e *Extractor) Extract(filename string, data []byte) (*Document, error) {
	name := SafeFilename(filename)

	// TagUnsupported и нераспознанные расширения обрабатываются одинаково
	if tag := e.engine.Classify(name); tag != TagText {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, Extension(name))
	}

	text := strings.ToValidUTF8(string(data), "")
	text = strings.TrimPrefix(text, "\uFEFF")

	if utf8.RuneCountInString(strings.TrimSpace(text)) < e.cfg.MinChars {
		return nil, ErrTooShort
	}

	doc := &Document{Filename: name, Text: text}
	if utf8.RuneCountInString(text) > e.cfg.MaxChars {
		doc.Text = utils.Truncate(text, e.cfg.MaxChars) + e.cfg.TruncateLabel
		doc.Truncated = true
	}

	return doc, nil
}

// SafeFilename возвращает безопасное имя файла без пути.
//
// Буквы (включая CJK), цифры, '.', '-' и '_' сохраняются, пробелы и прочие
// символы заменяются на '_'. Ведущие точки удаляются. Пустой результат
// заменяется на "document".
func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	safe := strings.TrimLeft(b.String(), "._")
	if safe == "" {
		return "document"
	}
	return safe
}

// Extension возвращает расширение файла в нижнем регистре без точки.
func Extension(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "(none)"
	}
	return ext
}
