package structured

import "strings"

// FollowUpKeys — ключи со списком подсказок. Порядок значим.
var FollowUpKeys = []string{"questions", "suggested_questions"}

// DecodeFollowUps достаёт подсказки из ответа модели.
//
// Принимает {"questions": [...]}, {"suggested_questions": [...]} или
// голый массив. Пустые и нестроковые элементы отбрасываются.
func DecodeFollowUps(content string) []string {
	doc, err := Decode(content)
	if err != nil {
		return nil
	}

	var list []any
	switch v := doc.(type) {
	case []any:
		list = v
	case map[string]any:
		for _, key := range FollowUpKeys {
			if l, ok := v[key].([]any); ok {
				list = l
				break
			}
		}
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
