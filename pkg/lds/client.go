// Package lds — SDK для REST API системы LDS (Learning Design Studio).
//
// Архитектура:
//
// SDK отвечает за транспорт: авторизацию, rate limiting, таймауты
// соединения и чтения, классификацию ошибок. Каталог опций (subjects,
// grade-levels, bloom-taxonomy-*, ilo-categories, ilo-patterns) описан
// в options.go.
//
// Использование:
//   - pkg/lds - переиспользуемый SDK
//   - pkg/tools/std - тонкая обёртка для LLM function calling
//   - internal/agent - проксирование опций и health-проба
//
// Автоматических повторов нет: ошибка транспорта возвращается сразу
// с типом Timeout или ConnectionFailure.
package lds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/logger"
)

// ErrorKind представляет тип ошибки при работе с LDS API.
type ErrorKind int

const (
	KindUpstreamError ErrorKind = iota
	KindTimeout
	KindConnectionFailure
	KindAuthFailed
)

// String возвращает строковое представление типа ошибки.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindConnectionFailure:
		return "ConnectionFailure"
	case KindAuthFailed:
		return "AuthFailed"
	default:
		return "UpstreamError"
	}
}

// Error — ошибка обращения к LDS.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // 0 для ошибок транспорта
	URL        string
	Body       string // Тело ответа (усечённое)
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("LDS API error %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("lds %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("lds %s", e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Details возвращает тело ответа LDS для не-2xx статусов.
func (e *Error) Details() string { return e.Body }

// KindOf возвращает тип ошибки LDS или KindUpstreamError для чужих ошибок.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamError
}

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Стандартный *http.Client реализует этот интерфейс, в тестах подменяется.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response — сырой ответ LDS без интерпретации тела.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	URL         string
}

// OK сообщает, что статус 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsJSON сообщает, что тело ответа — валидный JSON.
func (r *Response) IsJSON() bool {
	trimmed := bytes.TrimSpace(r.Body)
	return len(trimmed) > 0 && json.Valid(trimmed)
}

// Client — клиент LDS API.
type Client struct {
	baseURL       string
	authorization string
	defaultLocale string
	healthTimeout time.Duration
	rateLimit     int
	burst         int

	httpClient HTTPClient
	log        *zap.SugaredLogger

	mu       sync.Mutex
	limiters map[Option]*rate.Limiter
}

// NewFromConfig создает клиент из конфигурации.
//
// Таймаут соединения ограничивает dial и TLS handshake, таймаут чтения
// ограничивает запрос целиком.
func NewFromConfig(cfg config.LDSConfig, log *zap.SugaredLogger) (*Client, error) {
	cfg = cfg.GetDefaults()

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lds.base_url is required")
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return New(cfg, &http.Client{Transport: transport, Timeout: cfg.ReadTimeout}, log), nil
}

// New создает клиент с явно переданным HTTP клиентом.
func New(cfg config.LDSConfig, httpClient HTTPClient, log *zap.SugaredLogger) *Client {
	cfg = cfg.GetDefaults()

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		authorization: AuthorizationHeader(cfg.Token),
		defaultLocale: cfg.DefaultLocale,
		healthTimeout: cfg.HealthTimeout,
		rateLimit:     *cfg.RateLimit,
		burst:         cfg.BurstLimit,
		httpClient:    httpClient,
		log:           logger.OrNop(log),
		limiters:      make(map[Option]*rate.Limiter),
	}
}

// AuthorizationHeader нормализует токен: префикс "Bearer " добавляется,
// если его ещё нет. Пустой токен даёт пустой заголовок.
func AuthorizationHeader(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "Bearer ") {
		return token
	}
	return "Bearer " + token
}

// BaseURL возвращает базовый URL API.
func (c *Client) BaseURL() string { return c.baseURL }

// HasToken сообщает, настроен ли токен.
func (c *Client) HasToken() bool { return c.authorization != "" }

// DefaultLocale возвращает локаль по умолчанию.
func (c *Client) DefaultLocale() string { return c.defaultLocale }

// URL возвращает полный адрес опции.
func (c *Client) URL(opt Option) string {
	return c.baseURL + opt.Path()
}

// Forward отправляет POST с телом body в endpoint опции и возвращает
// ответ как есть, включая не-2xx статусы.
//
// Ошибка возвращается только при сбое транспорта (*Error с типом
// KindTimeout или KindConnectionFailure).
func (c *Client) Forward(ctx context.Context, opt Option, body []byte) (*Response, error) {
	if !opt.Valid() {
		return nil, fmt.Errorf("unknown lds option: %q", string(opt))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	url := c.URL(opt)

	if limiter := c.getOrCreateLimiter(opt); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			c.log.Warnw("LDS rate limiter wait failed", "option", string(opt), "error", err)
			return nil, &Error{Kind: KindTimeout, URL: url, Err: fmt.Errorf("rate limiter wait: %w", err)}
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.authorization != "" {
		httpReq.Header.Set("Authorization", c.authorization)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := classifyTransportError(err)
		c.log.Warnw("LDS request failed",
			"option", string(opt),
			"url", url,
			"kind", kind.String(),
			"error", err)
		return nil, &Error{Kind: kind, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: classifyTransportError(err), URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	c.log.Debugw("LDS response received",
		"option", string(opt),
		"status", resp.StatusCode,
		"bytes", len(respBody),
		"duration_ms", time.Since(start).Milliseconds())

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
		URL:         url,
	}, nil
}

// Call выполняет запрос опции с JSON-сериализуемым payload.
//
// В отличие от Forward, не-2xx статус превращается в *Error
// (401/403 дают KindAuthFailed). Тело 2xx ответа возвращается без разбора.
func (c *Client) Call(ctx context.Context, opt Option, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
	}

	resp, err := c.Forward(ctx, opt, body)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		kind := KindUpstreamError
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = KindAuthFailed
		}
		return nil, &Error{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			URL:        resp.URL,
			Body:       Preview(resp.Body, 500),
		}
	}

	return resp.Body, nil
}

// getOrCreateLimiter возвращает limiter для опции или создаёт новый.
// При rateLimit <= 0 ограничения нет и возвращается nil.
//
// rateLimit в запросах/минуту → rate.Limit в запросах/секунду.
func (c *Client) getOrCreateLimiter(opt Option) *rate.Limiter {
	if c.rateLimit <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[opt]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(float64(c.rateLimit)/60.0), c.burst)
	c.limiters[opt] = limiter
	return limiter
}

func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindConnectionFailure
}

// Preview возвращает первые n символов тела ответа.
func Preview(body []byte, n int) string {
	if len(body) == 0 {
		return "No response body"
	}
	r := []rune(string(body))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
