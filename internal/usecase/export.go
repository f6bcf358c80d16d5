// Package usecase связывает авторизацию, выгрузку чатов, обработку вложений
// и запись файлов в единый последовательный сценарий экспорта.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"teams-chat-exporter/internal/core/services"
	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/graph"
	"teams-chat-exporter/internal/pkg/config"
	"teams-chat-exporter/internal/pkg/progress"
	"teams-chat-exporter/internal/ports"
)

// State описывает этап, на котором находится сценарий экспорта.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateListingChats   State = "listing_chats"
	StateExportingChat  State = "exporting_chat"
	StateFinalizing     State = "finalizing"
	// StateDone и StateFailed — терминальные состояния, повторный запуск
	// сценария из них невозможен.
	StateDone   State = "done"
	StateFailed State = "failed"
)

// timestampLayout задаёт метку времени в именах создаваемых файлов.
const timestampLayout = "20060102_150405"

// Deps перечисляет зависимости сценария экспорта. Progress и Logger
// необязательны: без них используются заглушка и slog.Default.
type Deps struct {
	Tokens     ports.TokenProvider
	Session    *graph.Session
	Source     ports.ChatSource
	Extractor  ports.Extractor
	Downloader ports.Downloader
	JSON       ports.Exporter
	Excel      ports.Exporter
	Manifest   ports.ManifestWriter
	Progress   ports.ProgressReporter
	Logger     *slog.Logger
}

// ExportUseCase проводит один запуск экспорта по этапам: авторизация,
// получение списка чатов, выгрузка каждого чата, запись итоговых файлов.
// Экземпляр одноразовый: после завершения или ошибки нужен новый.
type ExportUseCase struct {
	cfg        *config.Config
	tokens     ports.TokenProvider
	session    *graph.Session
	source     ports.ChatSource
	extractor  ports.Extractor
	downloader ports.Downloader
	jsonExp    ports.Exporter
	excelExp   ports.Exporter
	manifest   ports.ManifestWriter
	progress   ports.ProgressReporter
	log        *slog.Logger

	state State

	// sleep и now выделены в поля, чтобы тесты не зависели от настоящих часов.
	sleep func(time.Duration)
	now   func() time.Time
}

// chatRecords хранит записи одного чата для пофайлового экспорта таблиц.
type chatRecords struct {
	chat    domain.Chat
	records []domain.ExportRecord
}

// NewExportUseCase создает новый сценарий экспорта.
func NewExportUseCase(cfg *config.Config, deps Deps) *ExportUseCase {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reporter := deps.Progress
	if reporter == nil {
		reporter = progress.NoopReporter{}
	}

	return &ExportUseCase{
		cfg:        cfg,
		tokens:     deps.Tokens,
		session:    deps.Session,
		source:     deps.Source,
		extractor:  deps.Extractor,
		downloader: deps.Downloader,
		jsonExp:    deps.JSON,
		excelExp:   deps.Excel,
		manifest:   deps.Manifest,
		progress:   reporter,
		log:        logger,
		state:      StateIdle,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// State возвращает текущий этап сценария.
func (uc *ExportUseCase) State() State {
	return uc.state
}

// Run выполняет экспорт от авторизации до записи файлов. Возвращаемая
// статистика заполнена и при ошибке: в ней остаётся всё, что успело
// накопиться до прерывания.
func (uc *ExportUseCase) Run(ctx context.Context) (*domain.RunStats, error) {
	if uc.state != StateIdle {
		return nil, fmt.Errorf("экспорт уже выполнялся, текущее состояние: %s", uc.state)
	}

	stats := &domain.RunStats{
		RunID:     uuid.NewString(),
		Mode:      uc.cfg.Mode,
		StartedAt: uc.now(),
	}
	stamp := stats.StartedAt.Format(timestampLayout)

	uc.log.InfoContext(ctx, "Начало экспорта", "run_id", stats.RunID, "mode", stats.Mode)

	// Каталог экспорта проверяется до входа пользователя: бессмысленно
	// запрашивать код устройства, если писать будет некуда.
	if err := os.MkdirAll(uc.cfg.Export.OutputDir, 0o755); err != nil {
		return uc.fail(ctx, stats, fmt.Errorf("не удалось создать каталог экспорта %s: %w", uc.cfg.Export.OutputDir, err))
	}

	uc.setState(ctx, StateAuthenticating)
	token, err := uc.tokens.Acquire(ctx)
	if err != nil {
		return uc.fail(ctx, stats, fmt.Errorf("авторизация не выполнена: %w", err))
	}
	uc.session.Update(token)

	identity, err := uc.source.Me(ctx)
	if err != nil {
		return uc.fail(ctx, stats, fmt.Errorf("не удалось проверить учётную запись: %w", err))
	}
	uc.session.SetIdentity(identity)
	stats.Identity = identity
	uc.log.InfoContext(ctx, "Учётная запись подтверждена", "user", identity.UserPrincipalName)

	uc.setState(ctx, StateListingChats)
	chats, err := uc.source.ListChats(ctx)
	if err != nil {
		return uc.fail(ctx, stats, fmt.Errorf("не удалось получить список чатов: %w", err))
	}

	if uc.cfg.Mode == domain.RunModeTest && len(chats) > 1 {
		uc.log.InfoContext(ctx, "Тестовый режим: обрабатывается только первый чат", "found", len(chats))
		chats = chats[:1]
	}
	stats.ChatsTotal = len(chats)
	uc.progress.RunStarted(identity, len(chats))

	if len(chats) == 0 {
		uc.log.WarnContext(ctx, "Чатов не найдено")
	}

	var (
		records []domain.ExportRecord
		groups  []chatRecords
	)
	for i, chat := range chats {
		uc.setState(ctx, StateExportingChat)
		label := chat.DisplayLabel(identity.DisplayName)
		uc.progress.ChatStarted(i+1, len(chats), label)

		chatRecs, chatErr := uc.exportChat(ctx, chat, label, stamp, stats)
		if chatErr != nil && !isChatLevelError(chatErr) {
			return uc.fail(ctx, stats, fmt.Errorf("выгрузка чата %s прервала запуск: %w", chat.ID, chatErr))
		}

		records = append(records, chatRecs...)
		groups = append(groups, chatRecords{chat: chat, records: chatRecs})
		stats.AddMessages(chat.ChatType, len(chatRecs))

		if chatErr != nil {
			stats.ChatsPartial++
			uc.log.WarnContext(ctx, "Чат выгружен частично",
				"chat_id", chat.ID, "messages", len(chatRecs), "error", chatErr)
		} else {
			stats.ChatsExported++
		}
		uc.progress.ChatFinished(i+1, len(chats), len(chatRecs), chatErr)

		// Пауза между чатами бережёт лимиты сервиса.
		if i+1 < len(chats) {
			uc.sleep(uc.cfg.API.ChatDelay)
		}
	}

	uc.setState(ctx, StateFinalizing)
	if len(records) == 0 {
		uc.log.WarnContext(ctx, "Сообщений не найдено, файлы экспорта не созданы")
	} else if err := uc.writeExports(ctx, records, groups, stamp, stats); err != nil {
		return uc.fail(ctx, stats, err)
	}

	uc.setState(ctx, StateDone)
	stats.FinishedAt = uc.now()
	uc.progress.RunFinished(stats)
	uc.log.InfoContext(ctx, "Экспорт завершён",
		"chats", stats.ChatsExported, "partial", stats.ChatsPartial,
		"messages", stats.Messages, "duration", stats.Duration().String())

	return stats, nil
}

// exportChat выгружает сообщения одного чата и обрабатывает его вложения.
// Записи возвращаются и при ошибке: частично выгруженный чат сохраняется.
func (uc *ExportUseCase) exportChat(ctx context.Context, chat domain.Chat, label, stamp string, stats *domain.RunStats) ([]domain.ExportRecord, error) {
	msgs, listErr := uc.source.ListMessages(ctx, chat.ID)

	recs := make([]domain.ExportRecord, 0, len(msgs))
	for _, msg := range msgs {
		recs = append(recs, domain.ExportRecord{
			Message:     msg,
			ChatID:      chat.ID,
			ChatTopic:   chat.Topic,
			ChatType:    chat.ChatType,
			ChatDisplay: label,
		})
	}

	if listErr != nil && !isChatLevelError(listErr) {
		return recs, listErr
	}

	// Вложения обрабатываются и для частично выгруженного чата: всё, что
	// успели получить, проходит тот же путь, что и при полной выгрузке.
	if uc.cfg.Attachments.Enabled {
		if err := uc.processAttachments(ctx, chat, msgs, stamp, stats); err != nil {
			return recs, err
		}
	}

	return recs, listErr
}

// processAttachments извлекает вложения из сообщений чата, применяет к ним
// политику скачивания и записывает манифест. Ошибка записи манифеста
// фатальна для запуска, как и любая другая ошибка записи выходного файла.
func (uc *ExportUseCase) processAttachments(ctx context.Context, chat domain.Chat, msgs []domain.Message, stamp string, stats *domain.RunStats) error {
	var atts []domain.Attachment
	for _, msg := range msgs {
		atts = append(atts, uc.extractor.Extract(msg)...)
	}
	if len(atts) == 0 {
		return nil
	}
	stats.AttachmentsFound += len(atts)

	processed := uc.downloader.DownloadAll(ctx, chat, atts)
	for _, att := range processed {
		switch att.Status {
		case domain.DownloadSucceeded:
			stats.AttachmentsDownloaded++
		case domain.DownloadSkipped:
			stats.AttachmentsSkipped++
		case domain.DownloadFailed:
			stats.AttachmentsFailed++
		}
	}

	if uc.cfg.Attachments.Mode == domain.AttachmentModeDownload {
		return nil
	}

	dir := filepath.Join(uc.cfg.Export.OutputDir, "attachments", services.ChatFolderName(chat))
	base := fmt.Sprintf("manifest_%s_%s", uc.cfg.Mode, stamp)
	path, err := uc.manifest.WriteManifest(processed, dir, base)
	if err != nil {
		return fmt.Errorf("не удалось записать манифест вложений чата %s: %w", chat.ID, err)
	}
	stats.OutputFiles = append(stats.OutputFiles, path)
	uc.log.InfoContext(ctx, "Манифест вложений сохранён", "path", path, "attachments", len(processed))

	return nil
}

// writeExports записывает итоговые файлы согласно настроенному формату.
func (uc *ExportUseCase) writeExports(ctx context.Context, records []domain.ExportRecord, groups []chatRecords, stamp string, stats *domain.RunStats) error {
	base := fmt.Sprintf("private_chats_%s_%s", uc.cfg.Mode, stamp)

	if uc.cfg.Export.Format == config.FormatJSON || uc.cfg.Export.Format == config.FormatBoth {
		path, err := uc.jsonExp.Export(records, uc.cfg.Export.OutputDir, base)
		if err != nil {
			return fmt.Errorf("не удалось записать JSON-архив: %w", err)
		}
		stats.OutputFiles = append(stats.OutputFiles, path)
		uc.log.InfoContext(ctx, "JSON-архив сохранён", "path", path, "records", len(records))
	}

	if uc.cfg.Export.Format == config.FormatExcel || uc.cfg.Export.Format == config.FormatBoth {
		if uc.cfg.Export.PerChat {
			for _, g := range groups {
				// Пустой чат не порождает пустую таблицу.
				if len(g.records) == 0 {
					continue
				}
				chatBase := base + "_" + services.ChatFolderName(g.chat)
				path, err := uc.excelExp.Export(g.records, uc.cfg.Export.OutputDir, chatBase)
				if err != nil {
					return fmt.Errorf("не удалось записать таблицу чата %s: %w", g.chat.ID, err)
				}
				stats.OutputFiles = append(stats.OutputFiles, path)
				uc.log.InfoContext(ctx, "Таблица чата сохранена", "path", path, "records", len(g.records))
			}
		} else {
			path, err := uc.excelExp.Export(records, uc.cfg.Export.OutputDir, base)
			if err != nil {
				return fmt.Errorf("не удалось записать таблицу: %w", err)
			}
			stats.OutputFiles = append(stats.OutputFiles, path)
			uc.log.InfoContext(ctx, "Таблица сохранена", "path", path, "records", len(records))
		}
	}

	return nil
}

// fail переводит сценарий в терминальное состояние Failed.
func (uc *ExportUseCase) fail(ctx context.Context, stats *domain.RunStats, err error) (*domain.RunStats, error) {
	uc.setState(ctx, StateFailed)
	stats.FinishedAt = uc.now()
	uc.log.ErrorContext(ctx, "Экспорт прерван", "error", err)
	return stats, err
}

func (uc *ExportUseCase) setState(ctx context.Context, s State) {
	uc.state = s
	uc.log.DebugContext(ctx, "Смена этапа экспорта", "state", string(s))
}

// isChatLevelError отличает ошибки, из-за которых пропускается только текущий
// чат, от фатальных для всего запуска. Ограничение частоты, устаревший токен
// и неуспешный HTTP-статус оставляют чат частично выгруженным; сетевые сбои и
// отмена контекста прерывают запуск.
func isChatLevelError(err error) bool {
	var reqErr *graph.RequestError
	return errors.Is(err, graph.ErrRateLimited) ||
		errors.Is(err, graph.ErrAuthExpired) ||
		errors.As(err, &reqErr)
}
