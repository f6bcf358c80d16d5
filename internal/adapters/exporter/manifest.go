package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// manifestHeaders — колонки манифеста вложений.
var manifestHeaders = []string{
	"kind", "name", "source_url", "sender", "message_date", "status", "note",
}

// ManifestCSVWriter реализует интерфейс ManifestWriter: манифест вложений
// одного чата в CSV, по строке на каждое найденное вложение, включая те,
// что не скачивались.
type ManifestCSVWriter struct{}

// NewManifestWriter создает новый экземпляр ManifestCSVWriter.
func NewManifestWriter() ports.ManifestWriter {
	return &ManifestCSVWriter{}
}

// WriteManifest записывает манифест в dir/base.csv и возвращает путь файла.
func (w *ManifestCSVWriter) WriteManifest(atts []domain.Attachment, dir, base string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create manifest dir: %w", err)
	}

	path := filepath.Join(dir, base+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create manifest file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(manifestHeaders); err != nil {
		return "", fmt.Errorf("failed to write manifest header: %w", err)
	}

	for _, att := range atts {
		row := []string{
			string(att.Kind),
			att.Name,
			att.SourceURL,
			att.Sender,
			att.MessageDate,
			string(att.Status),
			att.Note,
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write manifest row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush manifest: %w", err)
	}
	return path, nil
}
