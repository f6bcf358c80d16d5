package ports

import (
	"context"

	"teams-chat-exporter/internal/domain"
)

// TokenProvider определяет интерфейс получения и обновления токена доступа.
type TokenProvider interface {
	// Acquire выполняет первичный вход и возвращает токен доступа.
	Acquire(ctx context.Context) (domain.Token, error)
	// Refresh обновляет токен без участия пользователя.
	Refresh(ctx context.Context) (domain.Token, error)
}

// ChatSource определяет интерфейс получения чатов и сообщений из сервиса.
type ChatSource interface {
	// Me возвращает личность аутентифицированного пользователя.
	Me(ctx context.Context) (domain.Identity, error)
	// ListChats возвращает все приватные чаты пользователя.
	ListChats(ctx context.Context) ([]domain.Chat, error)
	// ListMessages возвращает все сообщения чата в том порядке,
	// в котором их отдаёт сервис.
	ListMessages(ctx context.Context, chatID string) ([]domain.Message, error)
}

// Extractor определяет интерфейс классификации вложений сообщения.
type Extractor interface {
	Extract(msg domain.Message) []domain.Attachment
}

// Downloader определяет интерфейс скачивания вложений одного чата.
type Downloader interface {
	// DownloadAll обрабатывает вложения чата и возвращает их с итоговыми
	// статусами. Ошибки отдельных вложений не прерывают обработку.
	DownloadAll(ctx context.Context, chat domain.Chat, atts []domain.Attachment) []domain.Attachment
}

// Exporter определяет интерфейс записи сообщений в файл экспорта.
type Exporter interface {
	// Export записывает записи в каталог dir под именем base, добавляя своё
	// расширение, и возвращает путь созданного файла.
	Export(records []domain.ExportRecord, dir, base string) (string, error)
}

// ManifestWriter определяет интерфейс записи манифеста вложений чата.
type ManifestWriter interface {
	WriteManifest(atts []domain.Attachment, dir, base string) (string, error)
}

// ExportReader определяет интерфейс чтения ранее созданного JSON-архива.
type ExportReader interface {
	Read(path string) ([]domain.ExportRecord, error)
}

// ProgressReporter получает события хода экспорта.
type ProgressReporter interface {
	RunStarted(identity domain.Identity, totalChats int)
	ChatStarted(index, total int, label string)
	ChatFinished(index, total int, messages int, err error)
	RunFinished(stats *domain.RunStats)
}
