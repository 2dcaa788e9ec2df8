// Package factory создает провайдеры LLM из конфигурации.
package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели
func NewLLMProvider(modelDef config.ModelDef, log *zap.SugaredLogger) (llm.Provider, error) {
	switch modelDef.Provider {
	case "azure", "openai", "":
		client, err := openai.NewClient(modelDef, log)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("%w: unknown provider type: %s", config.ErrConfiguration, modelDef.Provider)
	}
}
