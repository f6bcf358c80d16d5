package exporter

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teams-chat-exporter/internal/domain"
)

func TestManifestWriter_ListsEveryAttachment(t *testing.T) {
	dir := t.TempDir()

	atts := []domain.Attachment{
		{
			Kind:        domain.AttachmentFileReference,
			Name:        "q3.pdf",
			SourceURL:   "https://contoso-my.sharepoint.com/personal/u/Documents/q3.pdf",
			Sender:      "Иван Петров",
			MessageDate: "2024-03-01T10:00:00Z",
			Status:      domain.DownloadSucceeded,
			Note:        "скачано напрямую",
		},
		{
			Kind:        domain.AttachmentHostedImage,
			Name:        "image_1_1.png",
			SourceURL:   "https://graph.microsoft.com/v1.0/chats/19:a/messages/1/hostedContents/x/$value",
			Sender:      "Иван Петров",
			MessageDate: "2024-03-01T10:05:00Z",
			Status:      domain.DownloadSkipped,
			Note:        "встроенное изображение: не скачивается",
		},
		{
			Kind:        domain.AttachmentBodyURL,
			Name:        "a.zip",
			SourceURL:   "https://contoso.sharepoint.com/sites/team/a.zip",
			Sender:      "Мария Сидорова",
			MessageDate: "2024-03-01T11:00:00Z",
			Status:      domain.DownloadFailed,
			Note:        "не удалось скачать ни напрямую (unexpected status code: 404), ни через API (request to /me/drive/root:/sites/team/a.zip:/content failed with status 404)",
		},
	}

	path, err := NewManifestWriter().WriteManifest(atts, filepath.Join(dir, "attachments", "Проект X"), "manifest_20240301_100000")

	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "attachments", "Проект X", "manifest_20240301_100000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4) // заголовок + 3 вложения

	assert.Equal(t, manifestHeaders, rows[0])
	assert.Equal(t, "file_reference", rows[1][0])
	assert.Equal(t, "skipped", rows[2][5])
	assert.Equal(t, "failed", rows[3][5])
	// Каждая строка объясняет, почему она в манифесте.
	assert.NotEmpty(t, rows[2][6])
	assert.NotEmpty(t, rows[3][6])
}

func TestManifestWriter_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "attachments", "новый чат")

	path, err := NewManifestWriter().WriteManifest(nil, nested, "manifest")

	require.NoError(t, err)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
