package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"teams-chat-exporter/internal/adapters/exporter"
	"teams-chat-exporter/internal/auth"
	"teams-chat-exporter/internal/core/services"
	"teams-chat-exporter/internal/graph"
	"teams-chat-exporter/internal/log"
	"teams-chat-exporter/internal/pkg/config"
	"teams-chat-exporter/internal/pkg/progress"
	"teams-chat-exporter/internal/pkg/term"
	"teams-chat-exporter/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}

// run инкапсулирует всю логику инициализации и запуска экспорта.
func run() error {
	// 1. Загрузка конфигурации
	cfg, err := config.LoadConfig()
	if err != nil {
		// Логгер еще не инициализирован, выводим в stderr
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Инициализация логгера с маскировкой токенов
	logger := log.NewMaskedLogger(newLogHandler(cfg))
	slog.SetDefault(logger)

	// 3. Валидация конфигурации (после инициализации логгера)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// 4. Контекст с отменой по сигналу
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Сборка зависимостей
	terminal := term.NewTerminal()
	tokens, err := auth.NewDeviceCodeProvider(auth.Config{
		ClientID: cfg.Auth.ClientID,
		TenantID: cfg.Auth.TenantID,
		Scopes:   cfg.Auth.Scopes,
	}, terminal, auth.WithLogger(logger.With(slog.String("component", "auth"))))
	if err != nil {
		return fmt.Errorf("failed to create token provider: %w", err)
	}

	session := graph.NewSession()
	client := graph.NewClient(graph.Config{
		BaseURL:    cfg.API.BaseURL,
		PageSize:   cfg.API.PageSize,
		RetryDelay: cfg.API.RetryDelay,
		PageDelay:  cfg.API.PageDelay,
		Timeout:    cfg.API.RequestTimeout,
	}, session, tokens, graph.WithLogger(logger.With(slog.String("component", "graph"))))

	downloader := services.NewDownloadService(services.DownloadConfig{
		Mode:       cfg.Attachments.Mode,
		OutputDir:  cfg.Export.OutputDir,
		PauseEvery: cfg.Attachments.PauseEvery,
		Pause:      cfg.Attachments.Pause,
		Timeout:    cfg.Attachments.Timeout,
	}, client, services.WithLogger(logger.With(slog.String("component", "download"))))

	uc := usecase.NewExportUseCase(cfg, usecase.Deps{
		Tokens:     tokens,
		Session:    session,
		Source:     client,
		Extractor:  services.NewExtractor(),
		Downloader: downloader,
		JSON:       exporter.NewJSONExporter(),
		Excel:      exporter.NewExcelExporter(),
		Manifest:   exporter.NewManifestWriter(),
		Progress:   progress.NewConsoleReporter(os.Stdout, terminal.IsInteractive()),
		Logger:     logger,
	})

	// 6. Запуск экспорта
	if _, err := uc.Run(ctx); err != nil {
		return fmt.Errorf("экспорт не выполнен: %w", err)
	}

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
