package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// unsafeNameChars — символы, запрещённые в именах файлов.
var unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// relayFetcher абстрагирует авторизованное скачивание файла через API
// по пути внутри личного диска.
type relayFetcher interface {
	DriveContent(ctx context.Context, drivePath string) ([]byte, error)
}

// DownloadConfig содержит настройки службы скачивания.
type DownloadConfig struct {
	// Mode — режим обработки вложений: csv, download или both.
	Mode string
	// OutputDir — корневой каталог экспорта; файлы попадают в
	// OutputDir/attachments/<чат>/.
	OutputDir string
	// PauseEvery — через сколько обработанных вложений делать паузу.
	PauseEvery int
	// Pause — длительность периодической паузы.
	Pause time.Duration
	// Timeout — таймаут прямого скачивания одного файла.
	Timeout time.Duration
}

// DownloadServiceImpl реализует интерфейс Downloader.
//
// Для каждого скачиваемого вложения сначала выполняется прямой запрос по его
// адресу без авторизации. Если он не удался, а путь внутри личного диска
// известен, файл запрашивается повторно через API. Встроенные картинки не
// скачиваются ни в одном режиме. Ошибки отдельных вложений фиксируются в
// статусе и не прерывают обработку остальных.
type DownloadServiceImpl struct {
	relay      relayFetcher
	httpClient *http.Client
	mode       string
	outputDir  string
	pauseEvery int
	pause      time.Duration
	sleep      func(time.Duration)
	log        *slog.Logger
}

// DownloadOption определяет функциональную опцию службы скачивания.
type DownloadOption func(*DownloadServiceImpl)

// WithLogger устанавливает логгер для службы скачивания.
func WithLogger(l *slog.Logger) DownloadOption {
	return func(s *DownloadServiceImpl) {
		if l != nil {
			s.log = l
		}
	}
}

// NewDownloadService создает новый экземпляр DownloadServiceImpl.
func NewDownloadService(cfg DownloadConfig, relay relayFetcher, opts ...DownloadOption) *DownloadServiceImpl {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	s := &DownloadServiceImpl{
		relay:      relay,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		mode:       cfg.Mode,
		outputDir:  cfg.OutputDir,
		pauseEvery: cfg.PauseEvery,
		pause:      cfg.Pause,
		sleep:      time.Sleep,
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

var _ ports.Downloader = (*DownloadServiceImpl)(nil)

// DownloadAll обрабатывает вложения одного чата и возвращает их с итоговыми
// статусами. Имена сохранённых файлов уникальны внутри чата: при повторе
// к имени добавляется суффикс _1, _2 и так далее.
func (s *DownloadServiceImpl) DownloadAll(ctx context.Context, chat domain.Chat, atts []domain.Attachment) []domain.Attachment {
	downloading := s.mode == domain.AttachmentModeDownload || s.mode == domain.AttachmentModeBoth

	chatDir := filepath.Join(s.outputDir, "attachments", ChatFolderName(chat))
	usedNames := make(map[string]bool)

	result := make([]domain.Attachment, 0, len(atts))
	for i, att := range atts {
		result = append(result, s.processOne(ctx, att, chatDir, usedNames, downloading))

		if s.pauseEvery > 0 && (i+1)%s.pauseEvery == 0 && i+1 < len(atts) {
			s.sleep(s.pause)
		}
	}

	return result
}

// processOne применяет политику скачивания к одному вложению.
func (s *DownloadServiceImpl) processOne(ctx context.Context, att domain.Attachment, chatDir string, usedNames map[string]bool, downloading bool) domain.Attachment {
	switch att.Kind {
	case domain.AttachmentHostedImage:
		// Встроенные картинки не скачиваются ни в одном режиме: их адреса
		// требуют авторизованного доступа, недоступного прямым запросом.
		att.Status = domain.DownloadSkipped
		att.Note = "встроенное изображение: не скачивается"
		return att

	case domain.AttachmentUnknown:
		att.Status = domain.DownloadSkipped
		if att.Note == "" {
			att.Note = "вложение нераспознанного типа: не скачивается"
		}
		return att
	}

	if !downloading {
		att.Status = domain.DownloadSkipped
		att.Note = fmt.Sprintf("скачивание отключено (режим %s)", s.mode)
		return att
	}

	if att.SourceURL == "" {
		att.Status = domain.DownloadFailed
		att.Note = "у вложения нет адреса для скачивания"
		return att
	}

	data, directErr := s.fetchDirect(ctx, att.SourceURL)
	note := "скачано напрямую"
	if directErr != nil {
		if att.RelayPath == "" {
			// Идентификатор в личном диске неизвестен, угадывать адрес
			// повторной попытки нельзя.
			att.Status = domain.DownloadSkipped
			att.Note = fmt.Sprintf("прямое скачивание не удалось (%v); путь для повтора через API неизвестен", directErr)
			s.log.WarnContext(ctx, "Не удалось скачать вложение", "name", att.Name, "error", directErr)
			return att
		}

		var relayErr error
		data, relayErr = s.relay.DriveContent(ctx, att.RelayPath)
		if relayErr != nil {
			att.Status = domain.DownloadFailed
			att.Note = fmt.Sprintf("не удалось скачать ни напрямую (%v), ни через API (%v)", directErr, relayErr)
			s.log.WarnContext(ctx, "Не удалось скачать вложение", "name", att.Name, "error", relayErr)
			return att
		}
		note = "скачано через API после неудачной прямой попытки"
	}

	localPath, writeErr := s.saveFile(chatDir, att.Name, usedNames, data)
	if writeErr != nil {
		att.Status = domain.DownloadFailed
		att.Note = fmt.Sprintf("файл получен, но не сохранён: %v", writeErr)
		s.log.WarnContext(ctx, "Не удалось сохранить вложение", "name", att.Name, "error", writeErr)
		return att
	}

	att.Status = domain.DownloadSucceeded
	att.Note = note
	att.LocalPath = localPath
	s.log.DebugContext(ctx, "Вложение сохранено", "path", localPath, "size", len(data))
	return att
}

// fetchDirect выполняет прямой неавторизованный запрос содержимого.
func (s *DownloadServiceImpl) fetchDirect(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// saveFile записывает содержимое вложения под свободным именем внутри чата.
func (s *DownloadServiceImpl) saveFile(chatDir, name string, usedNames map[string]bool, data []byte) (string, error) {
	if err := os.MkdirAll(chatDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachments dir: %w", err)
	}

	fileName := uniqueName(usedNames, sanitizeFileName(name))
	fullPath := filepath.Join(chatDir, fileName)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment file: %w", err)
	}
	return fullPath, nil
}

// ChatFolderName выбирает имя подкаталога вложений чата: тема, если она
// есть, иначе идентификатор чата. Манифест чата кладётся в тот же каталог,
// что и его файлы.
func ChatFolderName(chat domain.Chat) string {
	label := chat.Topic
	if label == "" {
		label = chat.ID
	}
	return sanitizeFileName(label)
}

// sanitizeFileName заменяет запрещённые символы имени файла и ограничивает
// его длину, сохраняя расширение.
func sanitizeFileName(name string) string {
	clean := strings.TrimSpace(unsafeNameChars.ReplaceAllString(name, "_"))
	if clean == "" {
		return "file"
	}

	const maxRunes = 190
	if utf8.RuneCountInString(clean) <= maxRunes {
		return clean
	}

	ext := filepath.Ext(clean)
	if utf8.RuneCountInString(ext) > 10 {
		ext = ""
	}
	runes := []rune(clean)
	return string(runes[:maxRunes-utf8.RuneCountInString(ext)]) + ext
}

// uniqueName возвращает свободное имя, добавляя числовой суффикс при
// коллизии, и помечает его занятым.
func uniqueName(used map[string]bool, name string) string {
	if !used[name] {
		used[name] = true
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}
