package structured

import (
	"errors"
	"strings"
)

// ErrNoArray возвращается, когда ни верхний уровень, ни алиасы не дали массива.
var ErrNoArray = errors.New("no ILO array found in upstream content")

// ILOArrayKeys — ключи, под которыми ищется массив ILO, если модель
// вернула объект. Порядок значим.
var ILOArrayKeys = []string{"ilos", "ILOs", "data", "results", "statements"}

// ILOTextKeys — поля текста ILO в объекте. Порядок значим.
var ILOTextKeys = []string{"statement", "text", "content"}

// ILO — одна сформулированная цель обучения.
type ILO struct {
	Statement string `json:"statement"`
}

// ExtractStatements достаёт ILO из ответа модели.
//
// Верхний уровень может быть массивом или объектом; для объекта берётся
// первый ключ из ILOArrayKeys, значение которого массив. Элемент массива
// принимается строкой или объектом с непустым полем из ILOTextKeys.
// Прочие элементы отбрасываются, порядок сохраняется.
func ExtractStatements(content string) ([]ILO, error) {
	doc, err := Decode(content)
	if err != nil {
		return nil, err
	}

	items, ok := locateArray(doc)
	if !ok {
		return nil, ErrNoArray
	}

	ilos := make([]ILO, 0, len(items))
	for _, item := range items {
		if text := statementText(item); text != "" {
			ilos = append(ilos, ILO{Statement: text})
		}
	}
	return ilos, nil
}

func locateArray(doc any) ([]any, bool) {
	switch v := doc.(type) {
	case []any:
		return v, true
	case map[string]any:
		for _, key := range ILOArrayKeys {
			if list, ok := v[key].([]any); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func statementText(item any) string {
	switch v := item.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case map[string]any:
		for _, key := range ILOTextKeys {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}
