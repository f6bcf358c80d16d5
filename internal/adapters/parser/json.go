package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// ArchiveReader реализует интерфейс ExportReader для чтения JSON-архива,
// созданного прошлым запуском экспорта.
type ArchiveReader struct{}

// NewArchiveReader создает новый экземпляр ArchiveReader.
func NewArchiveReader() ports.ExportReader {
	return &ArchiveReader{}
}

// Read читает файл архива и возвращает записи экспорта.
func (r *ArchiveReader) Read(path string) ([]domain.ExportRecord, error) {
	if path == "" {
		return nil, fmt.Errorf("не указан путь к файлу архива")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var records []domain.ExportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal json: %w", err)
	}

	return records, nil
}

// ListArchives возвращает пути JSON-архивов в каталоге от новых к старым.
// Имена архивов содержат время запуска, поэтому обратная сортировка по
// имени и есть сортировка по свежести.
func ListArchives(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "private_chats_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list archives in %s: %w", dir, err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}
