package lds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Option — логическое имя справочника LDS.
type Option string

const (
	OptionSubjects      Option = "subjects"
	OptionGradeLevels   Option = "grade-levels"
	OptionBloomLevels   Option = "bloom-taxonomy-levels"
	OptionBloomVerbs    Option = "bloom-taxonomy-verbs"
	OptionILOCategories Option = "ilo-categories"
	OptionILOPatterns   Option = "ilo-patterns"
)

var optionPaths = map[Option]string{
	OptionSubjects:      "/chatbot/options/courses/subjects",
	OptionGradeLevels:   "/chatbot/options/courses/grade-levels",
	OptionBloomLevels:   "/chatbot/options/intended-learning-outcomes/bloom-taxonomy-levels",
	OptionBloomVerbs:    "/chatbot/options/intended-learning-outcomes/bloom-taxonomy-verbs",
	OptionILOCategories: "/chatbot/options/intended-learning-outcomes/types",
	OptionILOPatterns:   "/chatbot/patterns/intended-learning-outcomes",
}

// Options возвращает справочники, которые принимают тело {"locale": ...}.
func Options() []Option {
	return []Option{
		OptionSubjects,
		OptionGradeLevels,
		OptionBloomLevels,
		OptionBloomVerbs,
		OptionILOCategories,
	}
}

// ParseOption разбирает имя опции.
func ParseOption(name string) (Option, error) {
	opt := Option(strings.TrimSpace(name))
	if !opt.Valid() {
		return "", fmt.Errorf("unknown lds option: %q", name)
	}
	return opt, nil
}

// Valid сообщает, известна ли опция.
func (o Option) Valid() bool {
	_, ok := optionPaths[o]
	return ok
}

// Path возвращает путь endpoint относительно base URL.
func (o Option) Path() string {
	return optionPaths[o]
}

// LocaleBody строит тело запроса справочника.
func LocaleBody(locale string) []byte {
	if locale == "" {
		return []byte("{}")
	}
	body, _ := json.Marshal(map[string]string{"locale": locale})
	return body
}

// ILOCategories возвращает названия категорий ILO.
//
// Элементы ответа принимаются строками или объектами с полем
// name, label или title (в этом порядке).
func (c *Client) ILOCategories(ctx context.Context, locale string) ([]string, error) {
	if locale == "" {
		locale = c.defaultLocale
	}

	raw, err := c.Call(ctx, OptionILOCategories, map[string]string{"locale": locale})
	if err != nil {
		return nil, err
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal ilo categories: %w", err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if name := categoryName(item); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("lds returned no ilo categories")
	}

	return names, nil
}

func categoryName(item any) string {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"name", "label", "title"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// Ping проверяет связь с LDS запросом справочника subjects.
//
// Использует отдельный короткий таймаут health-пробы. Не-2xx статус
// ошибкой не считается: его интерпретирует вызывающий.
func (c *Client) Ping(ctx context.Context) (*Response, error) {
	if c.healthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.healthTimeout)
		defer cancel()
	}
	return c.Forward(ctx, OptionSubjects, LocaleBody("zh_HK"))
}
