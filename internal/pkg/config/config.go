// Package config предоставляет управление конфигурацией приложения
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Auth содержит параметры авторизации в Microsoft Graph
type Auth struct {
	ClientID string   `json:"client_id" yaml:"client_id"`
	TenantID string   `json:"tenant_id" yaml:"tenant_id"`
	Scopes   []string `json:"scopes" yaml:"scopes"`
}

// Export содержит настройки итоговых файлов выгрузки
type Export struct {
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Format    string `json:"format" yaml:"format"` // json, excel, both
	// PerChat включает отдельную таблицу на каждый чат вместо одной общей.
	PerChat bool `json:"per_chat" yaml:"per_chat"`
}

// Attachments содержит настройки обработки вложений
type Attachments struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Mode    string `json:"mode" yaml:"mode"` // csv, download, both
	// PauseEvery — через сколько обработанных вложений делать паузу.
	// 0 отключает паузы.
	PauseEvery int           `json:"pause_every" yaml:"pause_every"`
	Pause      time.Duration `json:"pause" yaml:"pause"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
}

// API содержит настройки клиента Graph API
type API struct {
	BaseURL        string        `json:"base_url" yaml:"base_url"`
	PageSize       int           `json:"page_size" yaml:"page_size"`
	RetryDelay     time.Duration `json:"retry_delay" yaml:"retry_delay"`
	PageDelay      time.Duration `json:"page_delay" yaml:"page_delay"`
	ChatDelay      time.Duration `json:"chat_delay" yaml:"chat_delay"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// Logging содержит конфигурацию логирования
type Logging struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// Config содержит конфигурацию приложения
type Config struct {
	Mode        string      `json:"mode" yaml:"mode"` // test, prod
	Auth        Auth        `json:"auth" yaml:"auth"`
	Export      Export      `json:"export" yaml:"export"`
	Attachments Attachments `json:"attachments" yaml:"attachments"`
	API         API         `json:"api" yaml:"api"`
	Logging     Logging     `json:"logging" yaml:"logging"`
}

// defaultConfig возвращает конфигурацию со значениями по умолчанию.
func defaultConfig() *Config {
	return &Config{
		Mode: DefaultMode,
		Auth: Auth{
			Scopes: DefaultScopes(),
		},
		Export: Export{
			OutputDir: DefaultOutputDir,
			Format:    DefaultExportFormat,
		},
		Attachments: Attachments{
			Enabled:    true,
			Mode:       DefaultAttachmentMode,
			PauseEvery: DefaultDownloadPauseEvery,
			Pause:      DefaultDownloadPause,
			Timeout:    DefaultDownloadTimeout,
		},
		API: API{
			BaseURL:        DefaultBaseURL,
			PageSize:       DefaultPageSize,
			RetryDelay:     DefaultRetryDelay,
			PageDelay:      DefaultPageDelay,
			ChatDelay:      DefaultChatDelay,
			RequestTimeout: DefaultRequestTimeout,
		},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// LoadConfig загружает конфигурацию приложения: значения по умолчанию,
// поверх них config.yml, поверх него переменные окружения (в том числе
// из .env файла).
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла, если он существует
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := loadFromYAML("config.yml", cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromYAML накладывает значения из YAML-файла на переданную конфигурацию.
// Отсутствие файла не считается ошибкой.
func loadFromYAML(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("не удалось разобрать YAML конфигурацию: %w", err)
	}

	return nil
}

// applyEnv накладывает переменные окружения поверх загруженной конфигурации
func applyEnv(cfg *Config) error {
	cfg.Auth.ClientID = getEnv("CLIENT_ID", cfg.Auth.ClientID)
	cfg.Auth.TenantID = getEnv("TENANT_ID", cfg.Auth.TenantID)
	if v := os.Getenv("SCOPES"); v != "" {
		cfg.Auth.Scopes = strings.Fields(v)
	}

	cfg.Mode = strings.ToLower(getEnv("MODE", cfg.Mode))
	cfg.Export.OutputDir = getEnv("OUTPUT_DIR", cfg.Export.OutputDir)
	cfg.Export.Format = strings.ToLower(getEnv("EXPORT_FORMAT", cfg.Export.Format))

	if v := os.Getenv("EXPORT_ATTACHMENTS"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("недопустимый EXPORT_ATTACHMENTS: %w", err)
		}
		cfg.Attachments.Enabled = enabled
	}

	if v := os.Getenv("MAX_MESSAGES_PER_REQUEST"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("недопустимый MAX_MESSAGES_PER_REQUEST: %w", err)
		}
		cfg.API.PageSize = size
	}

	return nil
}

// Validate проверяет, являются ли значения конфигурации допустимыми
func (c *Config) Validate() error {
	if c.Auth.ClientID == "" {
		return fmt.Errorf("auth.client_id не может быть пустым (переменная окружения CLIENT_ID)")
	}
	if c.Auth.TenantID == "" {
		return fmt.Errorf("auth.tenant_id не может быть пустым (переменная окружения TENANT_ID)")
	}
	if len(c.Auth.Scopes) == 0 {
		return fmt.Errorf("auth.scopes не может быть пустым")
	}

	switch c.Mode {
	case "test", "prod":
		// all good
	default:
		return fmt.Errorf("mode должен быть одним из: test, prod")
	}

	if c.Export.OutputDir == "" {
		return fmt.Errorf("export.output_dir не может быть пустым")
	}

	switch c.Export.Format {
	case FormatJSON, FormatExcel, FormatBoth:
		// all good
	default:
		return fmt.Errorf("export.format должен быть одним из: json, excel, both")
	}

	switch c.Attachments.Mode {
	case "csv", "download", "both":
		// all good
	default:
		return fmt.Errorf("attachments.mode должен быть одним из: csv, download, both")
	}

	if c.Attachments.PauseEvery < 0 {
		return fmt.Errorf("attachments.pause_every должно быть неотрицательным (0 отключает паузы)")
	}
	if c.Attachments.Pause < 0 {
		return fmt.Errorf("attachments.pause должно быть неотрицательным")
	}
	if c.Attachments.Timeout <= 0 {
		return fmt.Errorf("attachments.timeout должно быть положительным")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url не может быть пустым")
	}
	if c.API.PageSize <= 0 || c.API.PageSize > MaxPageSize {
		return fmt.Errorf("api.page_size должен быть в диапазоне 1-%d", MaxPageSize)
	}
	if c.API.RetryDelay <= 0 {
		return fmt.Errorf("api.retry_delay должно быть положительным")
	}
	if c.API.PageDelay < 0 {
		return fmt.Errorf("api.page_delay должно быть неотрицательным")
	}
	if c.API.ChatDelay < 0 {
		return fmt.Errorf("api.chat_delay должно быть неотрицательным")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout должно быть положительным")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// all good
	default:
		return fmt.Errorf("logging.level должен быть одним из: debug, info, warn, error")
	}

	switch c.Logging.Format {
	case "text", "json":
		// all good
	default:
		return fmt.Errorf("logging.format должен быть одним из: text, json")
	}

	return nil
}

// getEnv извлекает значение переменной окружения или возвращает значение по умолчанию, если она не установлена
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
