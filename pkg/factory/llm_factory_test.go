package factory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
)

func TestNewLLMProvider(t *testing.T) {
	p, err := NewLLMProvider(config.ModelDef{Provider: "openai", ModelName: "gpt-4o-mini", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = NewLLMProvider(config.ModelDef{Provider: "azure", ModelName: "gpt-4.1", APIKey: "k"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrConfiguration))

	_, err = NewLLMProvider(config.ModelDef{Provider: "zai"}, nil)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}
