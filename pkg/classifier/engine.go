package classifier

import (
	"path/filepath"
	"strings"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
)

// TagOther — тег файла, не подошедшего ни под одно правило.
const TagOther = "other"

// Engine классифицирует файлы по glob паттернам имени.
type Engine struct {
	rules []config.FileRule
}

func New(rules []config.FileRule) *Engine {
	return &Engine{rules: rules}
}

// Classify возвращает тег первого подошедшего правила или TagOther.
//
// Смотрит только на имя файла, не на путь. Сравнение регистронезависимое.
func (e *Engine) Classify(name string) string {
	filename := strings.ToLower(filepath.Base(name))

	for _, rule := range e.rules {
		for _, pattern := range rule.Patterns {
			if isMatch, _ := filepath.Match(strings.ToLower(pattern), filename); isMatch {
				return rule.Tag
			}
		}
	}

	return TagOther
}

// Process группирует имена файлов по тегам.
func (e *Engine) Process(names []string) map[string][]string {
	result := make(map[string][]string)
	for _, name := range names {
		tag := e.Classify(name)
		result[tag] = append(result[tag], name)
	}
	return result
}
