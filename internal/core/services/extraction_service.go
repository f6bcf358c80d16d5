package services

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

var (
	// hostedContentRegex находит ссылки на встроенные картинки в HTML-теле сообщения.
	hostedContentRegex = regexp.MustCompile(`https://graph\.microsoft\.com/v1\.0/chats/[^"'\s]+/hostedContents/[^"'\s]+/\$value`)
	// bodyURLRegex находит любые ссылки в тексте сообщения.
	bodyURLRegex = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// fileExtensions — расширения, по которым ссылка из текста считается файловой.
var fileExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".zip", ".rar", ".7z", ".txt", ".csv",
	".png", ".jpg", ".jpeg", ".gif",
}

// fileHostMarkers — домены файловых хранилищ: ссылка на них считается
// файловой независимо от расширения.
var fileHostMarkers = []string{"sharepoint.com", "1drv.ms", "onedrive.live.com"}

// ExtractorImpl реализует интерфейс Extractor.
//
// Классификация детерминирована: одно и то же сообщение всегда даёт один и
// тот же список вложений. Правила, в порядке применения:
//   - структурированная запись типа "reference" → file_reference;
//   - структурированная запись любого другого типа → unknown (в манифест
//     попадает с пояснением, но никогда не скачивается);
//   - ссылка на встроенную картинку в HTML-теле → hosted_image;
//   - файловая ссылка в тексте, не покрытая структурированной записью → body_url.
type ExtractorImpl struct{}

// NewExtractor создает новый экземпляр ExtractorImpl.
func NewExtractor() ports.Extractor {
	return &ExtractorImpl{}
}

// Extract классифицирует вложения одного сообщения.
func (s *ExtractorImpl) Extract(msg domain.Message) []domain.Attachment {
	var atts []domain.Attachment

	// Мапа для отслеживания уже учтённых адресов
	seenURLs := make(map[string]bool)

	for _, raw := range msg.Attachments {
		switch raw.ContentType {
		case "reference":
			name := raw.Name
			if name == "" {
				name = nameFromURL(raw.ContentURL)
			}
			atts = append(atts, domain.Attachment{
				Kind:        domain.AttachmentFileReference,
				Name:        name,
				SourceURL:   raw.ContentURL,
				RelayPath:   deriveRelayPath(raw.ContentURL),
				ContentType: raw.ContentType,
				MessageID:   msg.ID,
				MessageDate: msg.CreatedDateTime,
				Sender:      msg.SenderName(),
				Status:      domain.DownloadNotAttempted,
			})
			if raw.ContentURL != "" {
				seenURLs[raw.ContentURL] = true
			}
		default:
			atts = append(atts, domain.Attachment{
				Kind:        domain.AttachmentUnknown,
				Name:        raw.Name,
				SourceURL:   raw.ContentURL,
				ContentType: raw.ContentType,
				MessageID:   msg.ID,
				MessageDate: msg.CreatedDateTime,
				Sender:      msg.SenderName(),
				Status:      domain.DownloadNotAttempted,
				Note:        fmt.Sprintf("вложение типа %q не поддерживается", raw.ContentType),
			})
		}
	}

	for i, loc := range hostedContentRegex.FindAllString(msg.Body.Content, -1) {
		if seenURLs[loc] {
			continue
		}
		seenURLs[loc] = true
		atts = append(atts, domain.Attachment{
			Kind:        domain.AttachmentHostedImage,
			Name:        fmt.Sprintf("image_%s_%d.png", msg.ID, i+1),
			SourceURL:   loc,
			MessageID:   msg.ID,
			MessageDate: msg.CreatedDateTime,
			Sender:      msg.SenderName(),
			Status:      domain.DownloadNotAttempted,
		})
	}

	for _, u := range bodyURLRegex.FindAllString(msg.Body.Content, -1) {
		if !isFileURL(u) || seenURLs[u] {
			continue
		}
		seenURLs[u] = true
		atts = append(atts, domain.Attachment{
			Kind:        domain.AttachmentBodyURL,
			Name:        nameFromURL(u),
			SourceURL:   u,
			RelayPath:   deriveRelayPath(u),
			MessageID:   msg.ID,
			MessageDate: msg.CreatedDateTime,
			Sender:      msg.SenderName(),
			Status:      domain.DownloadNotAttempted,
		})
	}

	return atts
}

// isFileURL решает, указывает ли ссылка на файл: либо по расширению,
// либо по домену файлового хранилища.
func isFileURL(raw string) bool {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "/hostedcontents/") {
		return false
	}
	for _, marker := range fileHostMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for _, ext := range fileExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// nameFromURL извлекает имя файла из последнего сегмента пути ссылки.
func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "file"
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return base
}

// deriveRelayPath вычисляет идентификатор файла в личном диске для повторной
// попытки скачивания через API. Для файлов в облачном хранилище платформы это
// путь из адреса файла, для остальных ссылок идентификатора нет и функция
// возвращает пустую строку.
func deriveRelayPath(raw string) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Host)
	if !strings.Contains(host, "sharepoint") && !strings.Contains(host, "onedrive") {
		return ""
	}

	if u.Path == "" || u.Path == "/" {
		return ""
	}
	return u.Path
}
