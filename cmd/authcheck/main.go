package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"teams-chat-exporter/internal/auth"
	"teams-chat-exporter/internal/graph"
	"teams-chat-exporter/internal/log"
	"teams-chat-exporter/internal/pkg/config"
	"teams-chat-exporter/internal/pkg/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Проверка не пройдена: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Готово к экспорту чатов.")
}

// run выполняет вход по коду устройства и проверяет доступ запросом профиля
// пользователя.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewMaskedLogger(newLogHandler(cfg))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Проверка входа по коду устройства...")

	terminal := term.NewTerminal()
	tokens, err := auth.NewDeviceCodeProvider(auth.Config{
		ClientID: cfg.Auth.ClientID,
		TenantID: cfg.Auth.TenantID,
		Scopes:   cfg.Auth.Scopes,
	}, terminal, auth.WithLogger(logger.With(slog.String("component", "auth"))))
	if err != nil {
		return fmt.Errorf("failed to create token provider: %w", err)
	}

	token, err := tokens.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("авторизация не выполнена: %w", err)
	}

	session := graph.NewSession()
	session.Update(token)
	client := graph.NewClient(graph.Config{
		BaseURL:    cfg.API.BaseURL,
		PageSize:   cfg.API.PageSize,
		RetryDelay: cfg.API.RetryDelay,
		PageDelay:  cfg.API.PageDelay,
		Timeout:    cfg.API.RequestTimeout,
	}, session, tokens, graph.WithLogger(logger.With(slog.String("component", "graph"))))

	identity, err := client.Me(ctx)
	if err != nil {
		return fmt.Errorf("доступ к API не подтверждён: %w", err)
	}

	fmt.Printf("Авторизован как: %s (%s)\n", identity.DisplayName, identity.UserPrincipalName)
	return nil
}

// newLogHandler выбирает обработчик логов по настройкам уровня и формата.
func newLogHandler(cfg *config.Config) slog.Handler {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}
