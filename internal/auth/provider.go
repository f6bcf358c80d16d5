// Package auth реализует получение токенов доступа через вход по коду устройства.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// ErrNoCachedAccount возвращается, когда тихое получение токена невозможно:
// в кеше библиотеки нет ни одной учётной записи.
var ErrNoCachedAccount = errors.New("no cached account")

// authResult — токен и сведения об учётной записи после входа.
type authResult struct {
	Token   domain.Token
	Account domain.Identity
}

// deviceFlow описывает запущенный вход по коду устройства. Wait блокирует
// выполнение до подтверждения входа пользователем в браузере.
type deviceFlow struct {
	UserCode        string
	VerificationURL string
	Wait            func(ctx context.Context) (authResult, error)
}

// authClient абстрагирует библиотеку авторизации.
type authClient interface {
	StartDeviceFlow(ctx context.Context, scopes []string) (*deviceFlow, error)
	AcquireSilent(ctx context.Context, scopes []string) (authResult, error)
}

// DeviceCodePrompt показывает пользователю инструкции входа.
type DeviceCodePrompt interface {
	ShowDeviceCode(verificationURL, userCode string)
}

// Config содержит параметры входа.
type Config struct {
	ClientID string
	TenantID string
	Scopes   []string
}

// DeviceCodeProvider реализует интерфейс TokenProvider. Первый вызов Acquire
// проводит пользователя через вход по коду устройства, дальнейшие обновления
// выполняются тихо по сохранённой учётной записи.
type DeviceCodeProvider struct {
	client authClient
	scopes []string
	prompt DeviceCodePrompt
	log    *slog.Logger
}

// Option определяет функциональную опцию провайдера токенов.
type Option func(*DeviceCodeProvider)

// WithLogger устанавливает логгер провайдера.
func WithLogger(l *slog.Logger) Option {
	return func(p *DeviceCodeProvider) {
		if l != nil {
			p.log = l
		}
	}
}

// NewDeviceCodeProvider создает новый экземпляр DeviceCodeProvider.
func NewDeviceCodeProvider(cfg Config, prompt DeviceCodePrompt, opts ...Option) (*DeviceCodeProvider, error) {
	if cfg.ClientID == "" || cfg.TenantID == "" {
		return nil, errors.New("client id и tenant id обязательны для входа")
	}

	client, err := newMSALClient(cfg.ClientID, cfg.TenantID)
	if err != nil {
		return nil, err
	}

	p := &DeviceCodeProvider{
		client: client,
		scopes: cfg.Scopes,
		prompt: prompt,
		log:    slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

var _ ports.TokenProvider = (*DeviceCodeProvider)(nil)

// Acquire получает токен доступа. Сначала выполняется тихая попытка по
// сохранённой учётной записи, при неудаче запускается вход по коду устройства.
func (p *DeviceCodeProvider) Acquire(ctx context.Context) (domain.Token, error) {
	if res, err := p.client.AcquireSilent(ctx, p.scopes); err == nil {
		p.log.DebugContext(ctx, "Токен получен из кеша", "account", res.Account.UserPrincipalName)
		return res.Token, nil
	}

	flow, err := p.client.StartDeviceFlow(ctx, p.scopes)
	if err != nil {
		return domain.Token{}, fmt.Errorf("не удалось начать вход по коду устройства: %w", err)
	}

	p.prompt.ShowDeviceCode(flow.VerificationURL, flow.UserCode)
	p.log.InfoContext(ctx, "Ожидание подтверждения входа", "verification_url", flow.VerificationURL)

	res, err := flow.Wait(ctx)
	if err != nil {
		return domain.Token{}, fmt.Errorf("вход по коду устройства не завершён: %w", err)
	}

	p.log.InfoContext(ctx, "Авторизация выполнена", "account", res.Account.UserPrincipalName)
	return res.Token, nil
}

// Refresh тихо обновляет токен по сохранённой учётной записи. Повторный
// интерактивный вход отсюда не запускается: если обновление не удалось,
// решение остаётся за вызывающей стороной.
func (p *DeviceCodeProvider) Refresh(ctx context.Context) (domain.Token, error) {
	res, err := p.client.AcquireSilent(ctx, p.scopes)
	if err != nil {
		return domain.Token{}, fmt.Errorf("не удалось обновить токен: %w", err)
	}

	p.log.DebugContext(ctx, "Токен обновлён", "expires_on", res.Token.ExpiresOn)
	return res.Token, nil
}
