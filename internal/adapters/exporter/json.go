package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// JSONExporter реализует интерфейс Exporter для записи полного архива
// сообщений в JSON. Записи сохраняются как есть, включая сырую разметку тел
// и необработанные списки реакций и упоминаний.
type JSONExporter struct{}

// NewJSONExporter создает новый экземпляр JSONExporter.
func NewJSONExporter() ports.Exporter {
	return &JSONExporter{}
}

// Export записывает записи в dir/base.json и возвращает путь файла.
func (e *JSONExporter) Export(records []domain.ExportRecord, dir, base string) (string, error) {
	if records == nil {
		records = []domain.ExportRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export records: %w", err)
	}

	path := filepath.Join(dir, base+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
