package config

import "time"

// Форматы итоговых файлов экспорта.
const (
	FormatJSON  = "json"
	FormatExcel = "excel"
	// FormatBoth — JSON-архив и таблица за один запуск.
	FormatBoth = "both"
)

// Default values for configuration.
const (
	// Run defaults
	DefaultMode      = "prod"
	DefaultOutputDir = "./exports"

	// Export defaults
	DefaultExportFormat = FormatBoth

	// Attachment defaults
	DefaultAttachmentMode     = "csv"
	DefaultDownloadPauseEvery = 10
	DefaultDownloadPause      = 500 * time.Millisecond
	DefaultDownloadTimeout    = 60 * time.Second

	// Graph API defaults
	DefaultBaseURL        = "https://graph.microsoft.com/v1.0"
	DefaultPageSize       = 50
	DefaultRetryDelay     = 5 * time.Second
	DefaultPageDelay      = 100 * time.Millisecond
	DefaultChatDelay      = 200 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second

	// MaxPageSize — ограничение API на размер страницы при листинге чатов.
	MaxPageSize = 50

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// DefaultScopes возвращает области доступа Graph API, запрашиваемые по
// умолчанию. offline_access библиотека авторизации добавляет сама.
func DefaultScopes() []string {
	return []string{
		"https://graph.microsoft.com/Chat.Read",
		"https://graph.microsoft.com/Chat.ReadBasic",
		"https://graph.microsoft.com/User.Read",
	}
}
