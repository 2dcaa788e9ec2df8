package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
models:
  default_chat: gpt-4.1
  definitions:
    gpt-4.1:
      provider: azure
      model_name: gpt-4.1
      api_key: ${TEST_LLM_KEY}
      base_url: https://example.openai.azure.com/
lds:
  token: ${TEST_LDS_TOKEN}
`

func TestParse_ExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-test")
	t.Setenv("TEST_LDS_TOKEN", "abc")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	def, ok := cfg.GetChatModel("")
	require.True(t, ok)
	assert.Equal(t, "sk-test", def.APIKey)
	assert.Equal(t, "2025-01-01-preview", def.APIVersion)
	assert.Equal(t, 60*time.Second, def.Timeout)

	assert.Equal(t, "abc", cfg.LDS.Token)
	assert.Equal(t, "https://lds.cite.hku.hk/api", cfg.LDS.BaseURL)
	assert.Equal(t, "zh_HK", cfg.LDS.DefaultLocale)
	assert.Equal(t, 5*time.Second, cfg.LDS.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.LDS.ReadTimeout)
	require.NotNil(t, cfg.LDS.RateLimit)
	assert.Equal(t, 600, *cfg.LDS.RateLimit)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Chat.HighScaffoldingBelow)
	assert.Equal(t, 30, cfg.Chat.MediumScaffoldingBelow)
	assert.Equal(t, 5, cfg.Chat.HistoryWindow)
	assert.Len(t, cfg.Chat.DefaultFollowUps, 3)
	assert.True(t, cfg.Generation.ShouldFetchCategories())
	assert.Equal(t, []string{"Knowledge", "Skills", "Values and Attitudes"}, cfg.Generation.FallbackCategories)
	assert.Equal(t, 10000, cfg.Document.MaxChars)
}

func TestParse_MissingAPIKeyIsConfigurationError(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "")

	_, err := Parse([]byte(minimalYAML))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestParse_AzureRequiresBaseURL(t *testing.T) {
	raw := `
models:
  default_chat: m
  definitions:
    m:
      provider: azure
      model_name: gpt-4.1
      api_key: key
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "base_url")
}

func TestParse_EmptyAzureDeploymentDefaults(t *testing.T) {
	t.Setenv("TEST_DEPLOYMENT", "")
	raw := `
models:
  default_chat: m
  definitions:
    m:
      provider: azure
      model_name: ${TEST_DEPLOYMENT}
      api_key: key
      base_url: https://example.openai.azure.com/
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	def, ok := cfg.GetChatModel("")
	require.True(t, ok)
	assert.Equal(t, "gpt-4.1", def.ModelName)
}

func TestParse_OpenAIRequiresModelName(t *testing.T) {
	raw := `
models:
  default_chat: m
  definitions:
    m:
      provider: openai
      api_key: key
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "model_name")
}

func TestParse_UnknownDefaultModel(t *testing.T) {
	raw := `
models:
  default_chat: missing
  definitions: {}
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestParse_KeepsExplicitThresholds(t *testing.T) {
	raw := `
models:
  default_chat: m
  definitions:
    m:
      provider: openai
      model_name: gpt-4o-mini
      api_key: key
lds:
  rate_limit: 0
chat:
  high_scaffolding_below: 5
  refusal_text: "out of scope"
generation:
  fetch_categories: false
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Chat.HighScaffoldingBelow)
	assert.Equal(t, 30, cfg.Chat.MediumScaffoldingBelow)
	assert.Equal(t, "out of scope", cfg.Chat.RefusalText)
	assert.False(t, cfg.Generation.ShouldFetchCategories())
	require.NotNil(t, cfg.LDS.RateLimit)
	assert.Equal(t, 0, *cfg.LDS.RateLimit)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_ReadsFile(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.Models.DefaultChat)
}

func TestDebugLogsDefaults(t *testing.T) {
	raw := `
models:
  default_chat: m
  definitions:
    m:
      provider: openai
      model_name: gpt-4o-mini
      api_key: key
app:
  debug_logs:
    enabled: true
    include_tool_args: true
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.True(t, cfg.App.DebugLogs.Enabled)

	d := cfg.App.DebugLogs.GetDefaults()
	assert.Equal(t, "./debug_logs", d.LogsDir)
	assert.Equal(t, 5000, d.MaxResultSize)
	assert.True(t, d.IncludeToolArgs)
	assert.False(t, d.IncludeToolResults)
}
