// Package utils предоставляет вспомогательные функции для обработки ответов LLM.
//
// Включает утилиты для очистки ответов от markdown-обёртки, извлечения
// JSON из текста и безопасного усечения строк.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// LLM часто возвращает JSON обёрнутым в markdown кодовые блоки:
//
//	```json
//	{"key": "value"}
//	```
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	`{"a": 1}` → {"a": 1}
//	``` [1, 2] ``` → [1, 2]
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	// Удаляем ```json в начале
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```Json")

	// Удаляем ``` в начале и в конце
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// ExtractJSON находит первый JSON объект или массив в тексте.
//
// LLM часто возвращает JSON вместе с пояснительным текстом. Поиск учитывает
// вложенность и строки в кавычках (скобки внутри строк не считаются).
// Незакрытый фрагмент возвращается до конца строки.
//
// Возвращает пустую строку если ни '{', ни '[' не найдено.
//
// ВНИМАНИЕ: Не валидирует JSON, только извлекает его.
// Для валидации используйте json.Unmarshal().
func ExtractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}

// Truncate обрезает строку до n символов (runes).
func Truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// TruncateWithSuffix обрезает строку до n символов и добавляет suffix,
// если что-то было отброшено.
func TruncateWithSuffix(s string, n int, suffix string) string {
	cut := Truncate(s, n)
	if len(cut) == len(s) {
		return s
	}
	return cut + suffix
}
