package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/agent"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/lds"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/logger"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/metrics"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/structured"
)

// Service — операции оркестратора, которые публикует HTTP слой.
type Service interface {
	Forward(ctx context.Context, opt lds.Option, locale string) (*agent.Forwarded, error)
	ForwardRaw(ctx context.Context, opt lds.Option, body []byte) (*agent.Forwarded, error)
	GenerateILOs(ctx context.Context, req agent.ILORequest) ([]structured.ILO, error)
	SuggestDP(ctx context.Context, req agent.DPRequest) (structured.DPRecommendation, error)
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
	AnalyzeDocument(ctx context.Context, req agent.DocumentRequest) (*agent.DocumentAnalysis, error)
	Health(ctx context.Context) agent.HealthReport
	MaxUploadBytes() int64
}

var _ Service = (*agent.Orchestrator)(nil)

// Options — зависимости сервера.
type Options struct {
	Config        config.ServerConfig
	Service       Service
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer // Источник для /metrics, nil отключает endpoint
	Log           *zap.SugaredLogger
	DefaultLocale string
}

// Server отдаёт REST интерфейс сервиса.
type Server struct {
	cfg           config.ServerConfig
	svc           Service
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	log           *zap.SugaredLogger
	defaultLocale string
}

// NewServer создает сервер.
func NewServer(opts Options) *Server {
	locale := opts.DefaultLocale
	if locale == "" {
		locale = "zh_HK"
	}
	return &Server{
		cfg:           opts.Config,
		svc:           opts.Service,
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		log:           logger.OrNop(opts.Log),
		defaultLocale: locale,
	}
}

// Handler собирает маршруты сервиса.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for path, opt := range optionRoutes {
		mux.Handle(path, s.route(path, s.handleOption(opt)))
	}
	mux.Handle("/api/chatbot/patterns/intended-learning-outcomes",
		s.route("/api/chatbot/patterns/intended-learning-outcomes", http.HandlerFunc(s.handleILOPatterns)))
	mux.Handle("/api/chat", s.route("/api/chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("/api/suggest_dp", s.route("/api/suggest_dp", http.HandlerFunc(s.handleSuggestDP)))
	mux.Handle("/api/generate_ilos", s.route("/api/generate_ilos", http.HandlerFunc(s.handleGenerateILOs)))
	mux.Handle("/api/analyze-document", s.route("/api/analyze-document", http.HandlerFunc(s.handleAnalyzeDocument)))
	mux.Handle("/api/health", s.route("/api/health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("/", s.route("/", http.HandlerFunc(s.handleRoot)))

	if s.gatherer != nil {
		path := s.cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// Start запускает HTTP сервер и блокируется до отмены ctx или ошибки.
//
// После отмены ctx сервер дорабатывает активные запросы не дольше
// shutdown_timeout.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: orDuration(s.cfg.ReadHeaderTimeout, 5*time.Second),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("HTTP server listening", "addr", s.cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), orDuration(s.cfg.ShutdownTimeout, 5*time.Second))
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Warnw("HTTP server shutdown incomplete", "error", err)
		}
		s.log.Infow("HTTP server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// withContext отклоняет запросы после отмены корневого контекста.
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "server is shutting down"})
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
