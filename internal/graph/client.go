package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// DefaultBaseURL — адрес REST API сервиса.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

var (
	// ErrRateLimited возвращается, когда сервис ограничил частоту запросов
	// и повторная попытка тоже не удалась.
	ErrRateLimited = errors.New("rate limited by service")
	// ErrAuthExpired возвращается, когда токен устарел и запрос не удался
	// даже после его обновления.
	ErrAuthExpired = errors.New("authorization expired")
)

// RequestError описывает неуспешный HTTP-ответ, не подлежащий повтору.
type RequestError struct {
	Status   int
	Endpoint string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.Endpoint, e.Status)
}

// httpDoer абстрагирует HTTP-клиент. Позволяет подменять транспорт в тестах.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config содержит настройки клиента API.
type Config struct {
	// BaseURL — корень API; пустое значение означает DefaultBaseURL.
	BaseURL string
	// PageSize — запрашиваемый размер страницы листингов (1..50).
	PageSize int
	// RetryDelay — фиксированная пауза перед единственным повтором запроса.
	RetryDelay time.Duration
	// PageDelay — пауза между запросами соседних страниц.
	PageDelay time.Duration
	// Timeout — общий таймаут одного HTTP-запроса.
	Timeout time.Duration
}

// Client выполняет аутентифицированные запросы к API сервиса.
//
// Политика повторов единая для всех запросов: ответ 429 повторяется ровно
// один раз после фиксированной паузы, ответ 401 ровно один раз после
// обновления токена через TokenProvider. Любой другой неуспешный статус
// возвращается сразу как RequestError. Токен перечитывается из сессии перед
// каждым исходящим запросом, поэтому обновление видно немедленно.
type Client struct {
	http       httpDoer
	session    *Session
	tokens     ports.TokenProvider
	baseURL    string
	pageSize   int
	retryDelay time.Duration
	pageDelay  time.Duration
	sleep      func(time.Duration)
	log        *slog.Logger
}

// ClientOption определяет функциональную опцию для конфигурации клиента.
type ClientOption func(*Client)

// WithLogger устанавливает логгер для клиента.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithHTTPClient заменяет HTTP-транспорт клиента.
func WithHTTPClient(h httpDoer) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient создаёт новый экземпляр Client.
func NewClient(cfg Config, session *Session, tokens ports.TokenProvider, opts ...ClientOption) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		session:    session,
		tokens:     tokens,
		baseURL:    cfg.BaseURL,
		pageSize:   cfg.PageSize,
		retryDelay: cfg.RetryDelay,
		pageDelay:  cfg.PageDelay,
		sleep:      time.Sleep,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Me возвращает личность аутентифицированного пользователя.
func (c *Client) Me(ctx context.Context) (domain.Identity, error) {
	var id domain.Identity
	if err := c.GetJSON(ctx, c.baseURL+"/me", &id); err != nil {
		return domain.Identity{}, fmt.Errorf("failed to fetch user identity: %w", err)
	}
	return id, nil
}

// DriveContent скачивает содержимое файла с личного диска пользователя
// по пути внутри диска (например, "/Documents/report.pdf").
func (c *Client) DriveContent(ctx context.Context, drivePath string) ([]byte, error) {
	escaped := (&url.URL{Path: drivePath}).EscapedPath()
	endpoint := fmt.Sprintf("%s/me/drive/root:%s:/content", c.baseURL, escaped)
	return c.GetBytes(ctx, endpoint)
}

// GetJSON выполняет GET с политикой повторов и декодирует JSON-ответ в out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.do(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// GetBytes выполняет GET с политикой повторов и возвращает тело как есть.
func (c *Client) GetBytes(ctx context.Context, endpoint string) ([]byte, error) {
	return c.do(ctx, endpoint)
}

// do выполняет запрос под единой политикой повторов и возвращает тело
// успешного ответа. Повторная попытка всего одна на запрос, какой бы
// причиной она ни была вызвана.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	var body []byte
	refreshed := false

	op := func() error {
		resp, err := c.get(ctx, endpoint)
		if err != nil {
			return backoff.Permanent(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			b, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return backoff.Permanent(fmt.Errorf("failed to read response body: %w", readErr))
			}
			body = b
			return nil

		case resp.StatusCode == http.StatusTooManyRequests:
			// Retry-After сервиса логируется, но пауза всегда фиксированная.
			c.log.WarnContext(ctx, "Сервис ограничил частоту запросов, повтор после паузы",
				"endpoint", endpoint, "retry_after", resp.Header.Get("Retry-After"), "delay", c.retryDelay)
			return fmt.Errorf("%w: %s", ErrRateLimited, endpoint)

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return backoff.Permanent(fmt.Errorf("%w: %s", ErrAuthExpired, endpoint))
			}
			refreshed = true
			c.log.WarnContext(ctx, "Токен отклонён, запрашиваем обновление", "endpoint", endpoint)
			tok, refreshErr := c.tokens.Refresh(ctx)
			if refreshErr != nil {
				return backoff.Permanent(fmt.Errorf("%w: token refresh failed: %v", ErrAuthExpired, refreshErr))
			}
			c.session.Update(tok)
			return fmt.Errorf("%w: %s", ErrAuthExpired, endpoint)

		default:
			return backoff.Permanent(&RequestError{Status: resp.StatusCode, Endpoint: endpoint})
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// get выполняет один аутентифицированный GET без повторов.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.AccessToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}
