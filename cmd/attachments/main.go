package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"teams-chat-exporter/internal/adapters/exporter"
	"teams-chat-exporter/internal/adapters/parser"
	"teams-chat-exporter/internal/auth"
	"teams-chat-exporter/internal/core/services"
	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/graph"
	"teams-chat-exporter/internal/log"
	"teams-chat-exporter/internal/pkg/config"
	"teams-chat-exporter/internal/pkg/term"
)

func main() {
	if err := run(); err != nil {
		slog.Error("attachment download failed", "error", err)
		os.Exit(1)
	}
}

// run скачивает вложения по ранее созданному JSON-архиву экспорта.
func run() error {
	var archivePath string
	flag.StringVar(&archivePath, "archive", "", "путь к JSON-архиву (по умолчанию выбор из списка)")
	flag.Parse()

	// 1. Конфигурация и логгер
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

	fmt.Println("Скачивание вложений из архива экспорта")
	fmt.Println(strings.Repeat("=", 60))

	// 2. Авторизация и проверка учётной записи
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
		return fmt.Errorf("не удалось проверить учётную запись: %w", err)
	}
	session.SetIdentity(identity)
	fmt.Printf("Авторизован как: %s (%s)\n\n", identity.DisplayName, identity.UserPrincipalName)

	// 3. Выбор архива
	if archivePath == "" {
		archivePath, err = selectArchive(terminal, cfg.Export.OutputDir)
		if err != nil {
			return err
		}
	}

	records, err := parser.NewArchiveReader().Read(archivePath)
	if err != nil {
		return fmt.Errorf("не удалось прочитать архив: %w", err)
	}
	fmt.Printf("Архив: %s, сообщений: %d\n\n", filepath.Base(archivePath), len(records))

	// 4. Повтор этапа вложений поверх архива. Режим принудительно both:
	// назначение этой команды — получить файлы, даже если сам экспорт
	// выполнялся без скачивания.
	downloader := services.NewDownloadService(services.DownloadConfig{
		Mode:       domain.AttachmentModeBoth,
		OutputDir:  cfg.Export.OutputDir,
		PauseEvery: cfg.Attachments.PauseEvery,
		Pause:      cfg.Attachments.Pause,
		Timeout:    cfg.Attachments.Timeout,
	}, client, services.WithLogger(logger.With(slog.String("component", "download"))))

	extractor := services.NewExtractor()
	manifest := exporter.NewManifestWriter()
	stamp := time.Now().Format("20060102_150405")

	var found, downloaded, skipped, failed int
	start := time.Now()

	groups := groupByChat(records)
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}

		var atts []domain.Attachment
		for _, msg := range g.msgs {
			atts = append(atts, extractor.Extract(msg)...)
		}
		if len(atts) == 0 {
			continue
		}
		found += len(atts)

		fmt.Printf("[%d/%d] %s: вложений %d\n", i+1, len(groups), g.label, len(atts))

		processed := downloader.DownloadAll(ctx, g.chat, atts)
		for _, att := range processed {
			switch att.Status {
			case domain.DownloadSucceeded:
				downloaded++
			case domain.DownloadSkipped:
				skipped++
			case domain.DownloadFailed:
				failed++
			}
		}

		dir := filepath.Join(cfg.Export.OutputDir, "attachments", services.ChatFolderName(g.chat))
		base := fmt.Sprintf("manifest_%s_%s", cfg.Mode, stamp)
		if _, err := manifest.WriteManifest(processed, dir, base); err != nil {
			return fmt.Errorf("не удалось записать манифест вложений чата %s: %w", g.chat.ID, err)
		}
	}

	// 5. Итог
	fmt.Println("\nИтог скачивания:")
	fmt.Printf("  найдено вложений: %d\n", found)
	fmt.Printf("  скачано: %d\n", downloaded)
	fmt.Printf("  пропущено: %d\n", skipped)
	fmt.Printf("  с ошибками: %d\n", failed)
	fmt.Printf("  каталог: %s\n", filepath.Join(cfg.Export.OutputDir, "attachments"))
	fmt.Printf("  время: %s\n", time.Since(start).Round(time.Second))

	return nil
}

// selectArchive показывает список архивов от новых к старым и даёт выбрать
// один. Без терминала берётся самый свежий.
func selectArchive(terminal *term.Terminal, dir string) (string, error) {
	archives, err := parser.ListArchives(dir)
	if err != nil {
		return "", fmt.Errorf("не удалось найти архивы в %s: %w", dir, err)
	}
	if len(archives) == 0 {
		return "", fmt.Errorf("в каталоге %s нет архивов экспорта, сначала выполните exporter", dir)
	}

	fmt.Println("Доступные архивы экспорта:")
	for i, path := range archives {
		size := "?"
		if info, statErr := os.Stat(path); statErr == nil {
			size = fmt.Sprintf("%.1f МБ", float64(info.Size())/1024/1024)
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, filepath.Base(path), size)
	}

	if !terminal.IsInteractive() {
		fmt.Printf("Используется самый свежий: %s\n\n", filepath.Base(archives[0]))
		return archives[0], nil
	}

	idx, err := terminal.Choose("Какой архив обработать?", len(archives))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return archives[idx], nil
}

// groupByChat восстанавливает чаты из записей архива, сохраняя их порядок.
// Подпись чата берётся готовой из архива: состав участников в записях не
// хранится.
func groupByChat(records []domain.ExportRecord) []chatGroup {
	index := make(map[string]int)
	var groups []chatGroup
	for _, rec := range records {
		i, ok := index[rec.ChatID]
		if !ok {
			i = len(groups)
			index[rec.ChatID] = i
			groups = append(groups, chatGroup{
				chat: domain.Chat{
					ID:       rec.ChatID,
					Topic:    rec.ChatTopic,
					ChatType: rec.ChatType,
				},
				label: rec.ChatDisplay,
			})
		}
		groups[i].msgs = append(groups[i].msgs, rec.Message)
	}
	return groups
}

// chatGroup — сообщения одного чата, восстановленные из архива.
type chatGroup struct {
	chat  domain.Chat
	label string
	msgs  []domain.Message
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
