// Package prompt предоставляет функции для загрузки и рендеринга промптов.
//
// Встроенные шаблоны лежат в templates/*.yaml. Файл с тем же именем в
// каталоге app.prompts_dir заменяет встроенный.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Имена промптов.
const (
	ILOGeneration     = "ilo_generation"
	ILOGenerationSafe = "ilo_generation_safe"
	DPSuggestion      = "dp_suggestion"
	ChatSystem        = "chat_system"
	FollowUp          = "follow_up"
	DocumentAnalysis  = "document_analysis"
)

//go:embed templates/*.yaml
var builtin embed.FS

// Library — набор промптов, загруженный при старте.
type Library struct {
	files map[string]*PromptFile
}

// NewLibrary загружает встроенные промпты и применяет переопределения из
// overrideDir. Пустой overrideDir или отсутствующий файл оставляют встроенный промпт.
func NewLibrary(overrideDir string) (*Library, error) {
	entries, err := builtin.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read embedded prompts: %w", err)
	}

	lib := &Library{files: make(map[string]*PromptFile, len(entries))}

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".yaml")

		data, err := builtin.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded prompt %s: %w", name, err)
		}
		pf, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("embedded prompt %s: %w", name, err)
		}

		if overrideDir != "" {
			path := filepath.Join(overrideDir, entry.Name())
			if _, statErr := os.Stat(path); statErr == nil {
				pf, err = Load(path)
				if err != nil {
					return nil, fmt.Errorf("failed to load prompt override %s: %w", path, err)
				}
			}
		}

		lib.files[name] = pf
	}

	return lib, nil
}

// Get возвращает промпт по имени.
func (l *Library) Get(name string) (*PromptFile, error) {
	pf, ok := l.files[name]
	if !ok {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}
	return pf, nil
}

// Names возвращает отсортированные имена промптов.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.files))
	for name := range l.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
