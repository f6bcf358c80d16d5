package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teams-chat-exporter/internal/domain"
)

func fileMessage() domain.Message {
	return domain.Message{
		ID:              "1700000000001",
		CreatedDateTime: "2024-03-01T10:00:00Z",
		MessageType:     "message",
		From: &domain.MessageFrom{User: &domain.UserIdentity{
			DisplayName:       "Иван Петров",
			UserPrincipalName: "ivan@example.com",
		}},
		Body: domain.MessageBody{ContentType: "html", Content: "<p>отчёт во вложении</p>"},
		Attachments: []domain.RawAttachment{{
			ID:          "att-1",
			ContentType: "reference",
			ContentURL:  "https://contoso-my.sharepoint.com/personal/ivan_contoso_com/Documents/Reports/q3.pdf",
			Name:        "q3.pdf",
		}},
	}
}

func TestExtractor_FileReference(t *testing.T) {
	ex := NewExtractor()

	atts := ex.Extract(fileMessage())

	require.Len(t, atts, 1)
	att := atts[0]
	assert.Equal(t, domain.AttachmentFileReference, att.Kind)
	assert.Equal(t, "q3.pdf", att.Name)
	assert.Equal(t, "/personal/ivan_contoso_com/Documents/Reports/q3.pdf", att.RelayPath)
	assert.Equal(t, "1700000000001", att.MessageID)
	assert.Equal(t, "Иван Петров", att.Sender)
	assert.Equal(t, domain.DownloadNotAttempted, att.Status)
}

func TestExtractor_UnknownStructuredEntry(t *testing.T) {
	msg := fileMessage()
	msg.Attachments = []domain.RawAttachment{{
		ID:          "att-2",
		ContentType: "messageReference",
	}}

	atts := NewExtractor().Extract(msg)

	require.Len(t, atts, 1)
	assert.Equal(t, domain.AttachmentUnknown, atts[0].Kind)
	assert.Contains(t, atts[0].Note, "messageReference")
}

func TestExtractor_HostedImage(t *testing.T) {
	msg := domain.Message{
		ID:              "1700000000002",
		CreatedDateTime: "2024-03-01T11:00:00Z",
		MessageType:     "message",
		Body: domain.MessageBody{
			ContentType: "html",
			Content:     `<p>смотри скриншот</p><img src="https://graph.microsoft.com/v1.0/chats/19:abc@thread.v2/messages/1700000000002/hostedContents/aWQ9/$value" width="400">`,
		},
	}

	atts := NewExtractor().Extract(msg)

	require.Len(t, atts, 1)
	att := atts[0]
	assert.Equal(t, domain.AttachmentHostedImage, att.Kind)
	assert.Equal(t, "image_1700000000002_1.png", att.Name)
	assert.Contains(t, att.SourceURL, "/hostedContents/")
}

func TestExtractor_BodyURL(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantURLs []string
	}{
		{
			name:     "Ссылка с файловым расширением",
			body:     `договор тут: https://files.example.com/docs/contract.docx удачи`,
			wantURLs: []string{"https://files.example.com/docs/contract.docx"},
		},
		{
			name:     "Ссылка на файловое хранилище без расширения",
			body:     `https://contoso.sharepoint.com/sites/team/Shared`,
			wantURLs: []string{"https://contoso.sharepoint.com/sites/team/Shared"},
		},
		{
			name:     "Обычная ссылка не считается файлом",
			body:     `читай https://news.example.com/article тут`,
			wantURLs: nil,
		},
		{
			name:     "Повторы схлопываются",
			body:     `https://x.example.com/a.zip и снова https://x.example.com/a.zip`,
			wantURLs: []string{"https://x.example.com/a.zip"},
		},
	}

	ex := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := domain.Message{
				ID:   "m",
				Body: domain.MessageBody{ContentType: "html", Content: tt.body},
			}

			atts := ex.Extract(msg)

			var got []string
			for _, a := range atts {
				require.Equal(t, domain.AttachmentBodyURL, a.Kind)
				got = append(got, a.SourceURL)
			}
			assert.Equal(t, tt.wantURLs, got)
		})
	}
}

func TestExtractor_BodyURLCoveredByStructured(t *testing.T) {
	msg := fileMessage()
	// Та же ссылка присутствует и как структурированная запись, и в тексте.
	msg.Body.Content = `<a href="https://contoso-my.sharepoint.com/personal/ivan_contoso_com/Documents/Reports/q3.pdf">q3.pdf</a>`

	atts := NewExtractor().Extract(msg)

	require.Len(t, atts, 1)
	assert.Equal(t, domain.AttachmentFileReference, atts[0].Kind)
}

func TestExtractor_Deterministic(t *testing.T) {
	msg := fileMessage()
	msg.Body.Content = `<img src="https://graph.microsoft.com/v1.0/chats/19:a/messages/1/hostedContents/x/$value"> и https://files.example.com/a.pdf`

	ex := NewExtractor()
	first := ex.Extract(msg)
	second := ex.Extract(msg)

	require.Equal(t, first, second)
}

func TestDeriveRelayPath(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "Путь внутри личного хранилища",
			url:  "https://contoso-my.sharepoint.com/personal/ivan_contoso_com/Documents/Reports/q3.pdf",
			want: "/personal/ivan_contoso_com/Documents/Reports/q3.pdf",
		},
		{
			name: "Закодированные пробелы декодируются",
			url:  "https://contoso-my.sharepoint.com/personal/u/Documents/Общие%20файлы/план.xlsx",
			want: "/personal/u/Documents/Общие файлы/план.xlsx",
		},
		{
			name: "Чужой домен без идентификатора",
			url:  "https://files.example.com/Documents/a.pdf",
			want: "",
		},
		{
			name: "Корень сайта",
			url:  "https://contoso.sharepoint.com/",
			want: "",
		},
		{
			name: "Пустой адрес",
			url:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveRelayPath(tt.url))
		})
	}
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "report.pdf", nameFromURL("https://x.example.com/files/report.pdf"))
	assert.Equal(t, "report.pdf", nameFromURL("https://x.example.com/files/report.pdf?download=1"))
	assert.Equal(t, "file", nameFromURL("https://x.example.com/"))
	assert.Equal(t, "file", nameFromURL("https://x.example.com"))
}
