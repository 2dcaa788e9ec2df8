// Package config загружает конфигурацию сервиса из YAML.
//
// Значения вида ${VAR} подставляются из окружения (os.ExpandEnv), поэтому
// секреты (ключ LLM, токен LDS) живут в .env или в переменных процесса.
// Пороговые значения эвристик чата и списки ключевых слов тоже берутся отсюда.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrConfiguration помечает ошибки конфигурации, с которыми процесс не стартует.
var ErrConfiguration = errors.New("configuration error")

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Models     ModelsConfig     `yaml:"models"`
	LDS        LDSConfig        `yaml:"lds"`
	Chat       ChatConfig       `yaml:"chat"`
	Generation GenerationConfig `yaml:"generation"`
	Document   DocumentConfig   `yaml:"document"`
	S3         S3Config         `yaml:"s3"`
	Log        LogConfig        `yaml:"log"`
	App        AppSpecific      `yaml:"app"`
}

// ServerConfig — параметры HTTP сервера.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MetricsPath       string        `yaml:"metrics_path"`
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	DefaultChat string              `yaml:"default_chat"` // Алиас модели для всех операций
	Definitions map[string]ModelDef `yaml:"definitions"`  // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider   string        `yaml:"provider"`    // "azure" или "openai"
	ModelName  string        `yaml:"model_name"`  // Имя модели, для azure — имя deployment
	APIKey     string        `yaml:"api_key"`     // Поддерживает ${VAR}
	BaseURL    string        `yaml:"base_url"`    // Endpoint, для azure обязателен
	APIVersion string        `yaml:"api_version"` // Только azure
	Timeout    time.Duration `yaml:"timeout"`
}

// LDSConfig — настройки REST API системы LDS.
type LDSConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Token          string        `yaml:"token"`           // Поддерживает ${VAR}, с префиксом Bearer или без
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // Установка соединения
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // Полный запрос
	HealthTimeout  time.Duration `yaml:"health_timeout"`  // Запрос health-пробы
	RateLimit      *int          `yaml:"rate_limit"`      // Запросов в минуту, <= 0 выключает ограничение
	BurstLimit     int           `yaml:"burst_limit"`
	DefaultLocale  string        `yaml:"default_locale"`
}

// GetDefaults возвращает копию с дефолтами для незаполненных полей.
func (c LDSConfig) GetDefaults() LDSConfig {
	result := c

	if result.BaseURL == "" {
		result.BaseURL = "https://lds.cite.hku.hk/api"
	}
	if result.ConnectTimeout == 0 {
		result.ConnectTimeout = 5 * time.Second
	}
	if result.ReadTimeout == 0 {
		result.ReadTimeout = 30 * time.Second
	}
	if result.HealthTimeout == 0 {
		result.HealthTimeout = 10 * time.Second
	}
	if result.RateLimit == nil {
		limit := 600
		result.RateLimit = &limit
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 10
	}
	if result.DefaultLocale == "" {
		result.DefaultLocale = "zh_HK"
	}

	return result
}

// ChatConfig — эвристики разговорного ассистента.
//
// Пороги измеряются в символах (runes) последнего сообщения пользователя.
type ChatConfig struct {
	Greetings            []string `yaml:"greetings"`
	ScopeKeywords        []string `yaml:"scope_keywords"`
	DirectAnswerKeywords []string `yaml:"direct_answer_keywords"`
	DetailKeywords       []string `yaml:"detail_keywords"`
	DesignKeywords       []string `yaml:"design_keywords"` // Выбор дефолтного ответа "про дизайн"

	HighScaffoldingBelow   int `yaml:"high_scaffolding_below"`
	MediumScaffoldingBelow int `yaml:"medium_scaffolding_below"`
	DetailWithKeywordOver  int `yaml:"detail_with_keyword_over"`
	DetailOver             int `yaml:"detail_over"`
	DetailAfterRoundsOver  int `yaml:"detail_after_rounds_over"`
	DetailMinRounds        int `yaml:"detail_min_rounds"`

	HistoryWindow   int `yaml:"history_window"`
	FollowUpTail    int `yaml:"follow_up_tail"`
	FollowUpKeep    int `yaml:"follow_up_keep"`
	FollowUpTrimLen int `yaml:"follow_up_trim_len"`

	RefusalText      string   `yaml:"refusal_text"`
	GreetingReply    string   `yaml:"greeting_reply"`
	DesignReply      string   `yaml:"design_reply"`
	GenericReply     string   `yaml:"generic_reply"`
	DefaultFollowUps []string `yaml:"default_follow_ups"`
}

// GetDefaults заполняет пустые поля значениями, с которыми сервис работал изначально.
func (c ChatConfig) GetDefaults() ChatConfig {
	result := c

	if len(result.Greetings) == 0 {
		result.Greetings = []string{
			"你好", "您好", "hi", "hello", "hey", "早上好", "下午好", "晚上好",
			"good morning", "good afternoon", "good evening",
		}
	}
	if len(result.ScopeKeywords) == 0 {
		result.ScopeKeywords = []string{
			"learning", "learn", "teaching", "curriculum", "lesson", "assessment", "rubric",
			"bloom", "taxonomy", "ilo", "learning outcome", "pedagogy", "instruction",
			"課程", "教學", "學習", "學習目標", "評量", "教案", "布魯姆", "課綱", "單元", "教材",
			"設計", "教學設計", "課程設計", "教育", "學生", "老師", "教師",
		}
	}
	if len(result.DirectAnswerKeywords) == 0 {
		result.DirectAnswerKeywords = []string{
			"不要問了", "直接給答案", "直接寫", "不要引導", "直接回答", "別問了", "直接提供",
			"just give me the answer", "answer directly", "stop asking",
		}
	}
	if len(result.DetailKeywords) == 0 {
		result.DetailKeywords = []string{
			"年級", "科目", "主題", "學生", "課程", "單元", "記憶", "理解", "應用", "分析", "評估", "創造",
			"bloom", "taxonomy", "評量", "活動", "目標", "學習",
		}
	}
	if len(result.DesignKeywords) == 0 {
		result.DesignKeywords = []string{"教學設計", "課程設計", "設計", "如何", "design", "how"}
	}

	if result.HighScaffoldingBelow == 0 {
		result.HighScaffoldingBelow = 10
	}
	if result.MediumScaffoldingBelow == 0 {
		result.MediumScaffoldingBelow = 30
	}
	if result.DetailWithKeywordOver == 0 {
		result.DetailWithKeywordOver = 50
	}
	if result.DetailOver == 0 {
		result.DetailOver = 100
	}
	if result.DetailAfterRoundsOver == 0 {
		result.DetailAfterRoundsOver = 30
	}
	if result.DetailMinRounds == 0 {
		result.DetailMinRounds = 3
	}

	if result.HistoryWindow == 0 {
		result.HistoryWindow = 5
	}
	if result.FollowUpTail == 0 {
		result.FollowUpTail = 6
	}
	if result.FollowUpKeep == 0 {
		result.FollowUpKeep = 4
	}
	if result.FollowUpTrimLen == 0 {
		result.FollowUpTrimLen = 100
	}

	if result.RefusalText == "" {
		result.RefusalText = "抱歉，我專門協助學習設計和課程規劃。請詢問與您的課程相關的問題。"
	}
	if result.GreetingReply == "" {
		result.GreetingReply = "你好！我是學習設計助手，可以協助您進行課程規劃、教學設計、學習目標制定等。請告訴我您需要什麼幫助？"
	}
	if result.DesignReply == "" {
		result.DesignReply = "關於教學設計，我可以協助您：\n1. 制定學習目標（ILO）\n2. 設計教學活動\n3. 規劃評量方式\n4. 應用 Bloom's Taxonomy\n\n請告訴我您具體想了解哪個方面？"
	}
	if result.GenericReply == "" {
		result.GenericReply = "我理解您的問題。作為學習設計助手，我可以協助您進行課程規劃、教學設計、學習目標制定等。請提供更多細節，我會盡力幫助您。"
	}
	if len(result.DefaultFollowUps) == 0 {
		result.DefaultFollowUps = []string{
			"我想進一步細化這些學習目標",
			"我想了解如何設計對應的教學活動",
			"我想知道需要考慮哪些評量方式",
		}
	}

	return result
}

// GenerationConfig — параметры генерации ILO.
type GenerationConfig struct {
	FetchCategories    *bool    `yaml:"fetch_categories"` // nil означает true
	FallbackCategories []string `yaml:"fallback_categories"`
}

// GetDefaults возвращает копию с дефолтами.
func (c GenerationConfig) GetDefaults() GenerationConfig {
	result := c
	if result.FetchCategories == nil {
		fetch := true
		result.FetchCategories = &fetch
	}
	if len(result.FallbackCategories) == 0 {
		result.FallbackCategories = []string{"Knowledge", "Skills", "Values and Attitudes"}
	}
	return result
}

// ShouldFetchCategories сообщает, нужно ли запрашивать категории у LDS.
func (c GenerationConfig) ShouldFetchCategories() bool {
	return c.FetchCategories == nil || *c.FetchCategories
}

// DocumentConfig — анализ загруженных документов.
type DocumentConfig struct {
	MaxChars      int        `yaml:"max_chars"`
	MinChars      int        `yaml:"min_chars"`
	MaxUploadMB   int        `yaml:"max_upload_mb"`
	FileRules     []FileRule `yaml:"file_rules"`
	TruncateLabel string     `yaml:"truncate_label"`
}

// FileRule сопоставляет glob паттерны имени файла с типом документа.
type FileRule struct {
	Tag      string   `yaml:"tag"`      // "text" или "unsupported"
	Patterns []string `yaml:"patterns"` // Glob паттерны: "*.txt", "*.md"
}

// GetDefaults возвращает копию с дефолтами.
func (c DocumentConfig) GetDefaults() DocumentConfig {
	result := c
	if result.MaxChars == 0 {
		result.MaxChars = 10000
	}
	if result.MinChars == 0 {
		result.MinChars = 10
	}
	if result.MaxUploadMB == 0 {
		result.MaxUploadMB = 16
	}
	if len(result.FileRules) == 0 {
		result.FileRules = []FileRule{
			{Tag: "text", Patterns: []string{"*.txt", "*.md", "*.markdown", "*.csv"}},
			{Tag: "unsupported", Patterns: []string{"*.pdf", "*.doc", "*.docx"}},
		}
	}
	if result.TruncateLabel == "" {
		result.TruncateLabel = "\n\n...（內容已截斷）"
	}
	return result
}

// S3Config — архив загруженных документов. Выключен по умолчанию.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// LogConfig — настройки zap логгера.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json или console
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	DebugLogs  DebugLogsConfig `yaml:"debug_logs"`
	PromptsDir string          `yaml:"prompts_dir"` // Переопределение встроенных промптов, опционально
}

// DebugLogsConfig — JSON трейсы запросов к модели.
//
// Каждая операция (chat, generate_ilos, suggest_dp, analyze_document)
// пишет отдельный файл с вызовами модели и инструментов.
type DebugLogsConfig struct {
	Enabled            bool   `yaml:"enabled"`
	LogsDir            string `yaml:"logs_dir"`
	IncludeToolArgs    bool   `yaml:"include_tool_args"`
	IncludeToolResults bool   `yaml:"include_tool_results"`
	MaxResultSize      int    `yaml:"max_result_size"` // 0 без ограничения
}

// GetDefaults возвращает копию с дефолтами.
func (c DebugLogsConfig) GetDefaults() DebugLogsConfig {
	result := c
	if result.LogsDir == "" {
		result.LogsDir = "./debug_logs"
	}
	if result.MaxResultSize == 0 {
		result.MaxResultSize = 5000
	}
	return result
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает YAML из памяти: подстановка ENV, дефолты, валидация.
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":5000"
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Server.MetricsPath == "" {
		c.Server.MetricsPath = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	c.LDS = c.LDS.GetDefaults()
	c.Chat = c.Chat.GetDefaults()
	c.Generation = c.Generation.GetDefaults()
	c.Document = c.Document.GetDefaults()

	for name, def := range c.Models.Definitions {
		if def.Provider == "" {
			def.Provider = "azure"
		}
		if def.Timeout == 0 {
			def.Timeout = 60 * time.Second
		}
		if def.Provider == "azure" && def.APIVersion == "" {
			def.APIVersion = "2025-01-01-preview"
		}
		// Пустой AZURE_OPENAI_DEPLOYMENT означает deployment по умолчанию.
		if def.Provider == "azure" && def.ModelName == "" {
			def.ModelName = "gpt-4.1"
		}
		c.Models.Definitions[name] = def
	}
}

// validate проверяет обязательные поля. Все ошибки оборачивают ErrConfiguration.
func (c *AppConfig) validate() error {
	def, ok := c.GetChatModel("")
	if !ok {
		return fmt.Errorf("%w: default_chat model '%s' is not defined in definitions", ErrConfiguration, c.Models.DefaultChat)
	}
	if def.APIKey == "" {
		return fmt.Errorf("%w: api_key for model '%s' is required", ErrConfiguration, c.Models.DefaultChat)
	}
	if def.ModelName == "" {
		return fmt.Errorf("%w: model_name for model '%s' is required", ErrConfiguration, c.Models.DefaultChat)
	}
	switch def.Provider {
	case "azure":
		if def.BaseURL == "" {
			return fmt.Errorf("%w: base_url for azure model '%s' is required", ErrConfiguration, c.Models.DefaultChat)
		}
	case "openai":
	default:
		return fmt.Errorf("%w: unknown provider '%s'", ErrConfiguration, def.Provider)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: s3.bucket is required when s3.enabled", ErrConfiguration)
		}
		if c.S3.Endpoint == "" {
			return fmt.Errorf("%w: s3.endpoint is required when s3.enabled", ErrConfiguration)
		}
	}
	return nil
}

// GetChatModel возвращает конфигурацию модели по имени или модель по умолчанию.
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}
