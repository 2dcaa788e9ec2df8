// LDS Chatbot backend.
// HTTP сервер: прокси справочников LDS, генерация ILO, подбор DP и чат.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/agent"
	"github.com/ronaldyipts/lds-ilo-chatbot/internal/api"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/debug"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/factory"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/logger"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/metrics"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/prompt"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/s3storage"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/tools/std"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/utils"
)

// Options — флаги командной строки. Непустые значения перекрывают config.yaml.
type Options struct {
	Config   string `short:"c" long:"config" default:"config.yaml" description:"path to config.yaml"`
	EnvFile  string `long:"env-file" default:".env" description:"optional .env file loaded before the config"`
	Addr     string `long:"addr" description:"listen address, overrides server.addr"`
	LogLevel string `long:"log-level" description:"debug, info, warn or error; overrides log.level"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	// 0. .env опционален: переменные окружения процесса имеют приоритет
	envLoaded := false
	if opts.EnvFile != "" {
		if _, err := os.Stat(opts.EnvFile); err == nil {
			if err := godotenv.Load(opts.EnvFile); err != nil {
				return fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
			}
			envLoaded = true
		}
	}

	// 1. Конфигурация
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	// 2. Логгер
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Infow("Config loaded",
		"path", opts.Config,
		"env_file_loaded", envLoaded,
		"default_model", cfg.Models.DefaultChat,
		"lds_base_url", cfg.LDS.BaseURL,
		"lds_token_set", cfg.LDS.Token != "",
		"s3_archive", cfg.S3.Enabled)

	ctx, stop := utils.SetupGracefulShutdown(context.Background(), log)
	defer stop()

	// 3. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// 4. Оркестратор и его зависимости
	orchestrator, err := buildOrchestrator(cfg, m, log)
	if err != nil {
		return err
	}

	// 5. HTTP сервер
	server := api.NewServer(api.Options{
		Config:        cfg.Server,
		Service:       orchestrator,
		Metrics:       m,
		Gatherer:      reg,
		Log:           log,
		DefaultLocale: cfg.LDS.DefaultLocale,
	})

	return server.Start(ctx)
}

func buildOrchestrator(cfg *config.AppConfig, m *metrics.Metrics, log *zap.SugaredLogger) (*agent.Orchestrator, error) {
	modelDef, _ := cfg.GetChatModel("")
	provider, err := factory.NewLLMProvider(modelDef, log)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	ldsClient, err := lds.NewFromConfig(cfg.LDS, log)
	if err != nil {
		return nil, fmt.Errorf("lds client: %w", err)
	}

	registry := tools.NewRegistry()
	if err := std.RegisterLDSTools(registry, ldsClient); err != nil {
		return nil, err
	}

	prompts, err := prompt.NewLibrary(cfg.App.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("prompts: %w", err)
	}

	agentCfg := agent.Config{
		LLM:        provider,
		LDS:        ldsClient,
		Prompts:    prompts,
		Registry:   registry,
		Chat:       cfg.Chat,
		Generation: cfg.Generation,
		Document:   cfg.Document,
		Metrics:    m,
		Log:        log,
	}

	if cfg.S3.Enabled {
		archive, err := s3storage.New(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
		agentCfg.Archive = archive
		log.Infow("Document archive enabled", "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
	}

	if cfg.App.DebugLogs.Enabled {
		traces, err := debug.NewWriter(cfg.App.DebugLogs)
		if err != nil {
			return nil, fmt.Errorf("debug logs: %w", err)
		}
		agentCfg.Traces = traces
		log.Infow("Debug traces enabled", "dir", cfg.App.DebugLogs.GetDefaults().LogsDir)
	}

	return agent.New(agentCfg)
}
