package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// ErrNotJSON возвращается, когда в ответе модели не найден JSON.
var ErrNotJSON = errors.New("upstream content is not JSON")

// Validate проверяет документ на соответствие схеме.
func Validate(schema tools.JSONSchema, document any) error {
	schemaLoader := gojsonschema.NewGoLoader(map[string]any(schema))
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("data validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ValidateContent разбирает ответ модели и проверяет его схемой.
func ValidateContent(schema tools.JSONSchema, content string) error {
	doc, err := Decode(content)
	if err != nil {
		return err
	}
	return Validate(schema, doc)
}

// Decode разбирает ответ модели в дерево any.
//
// Сначала снимается markdown-обёртка, затем, если текст не JSON,
// из него извлекается первый объект или массив.
func Decode(content string) (any, error) {
	cleaned := utils.CleanJsonBlock(content)
	if cleaned == "" {
		return nil, ErrNotJSON
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err == nil {
		return doc, nil
	}

	extracted := utils.ExtractJSON(cleaned)
	if extracted == "" {
		return nil, ErrNotJSON
	}
	if err := json.Unmarshal([]byte(extracted), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	return doc, nil
}
