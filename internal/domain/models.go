package domain

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

// Chat представляет один приватный чат пользователя вместе с участниками.
type Chat struct {
	ID       string   `json:"id"`
	Topic    string   `json:"topic,omitempty"`
	ChatType string   `json:"chatType"`
	Members  []Member `json:"members,omitempty"`
}

// Member представляет участника чата.
type Member struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// DisplayLabel возвращает человекочитаемую подпись чата.
// Для диалогов 1:1 подписью служит имя собеседника (selfName исключается),
// для групповых чатов тема и число участников.
func (c Chat) DisplayLabel(selfName string) string {
	switch c.ChatType {
	case "oneOnOne":
		for _, m := range c.Members {
			if m.DisplayName != "" && m.DisplayName != selfName {
				return "1:1 с " + m.DisplayName
			}
		}
		return "1:1 чат"
	case "group":
		topic := c.Topic
		if topic == "" {
			topic = "Без названия"
		}
		return fmt.Sprintf("Группа: %s (%d уч.)", topic, len(c.Members))
	default:
		if c.Topic != "" {
			return c.Topic
		}
		return c.ChatType
	}
}

// Message представляет одно сообщение чата в том виде, в каком его отдаёт API.
// Поля Reactions и Mentions хранятся сырыми: для экспорта нужны только их
// количества, а в JSON-архив они должны попасть без потерь.
type Message struct {
	ID                   string            `json:"id"`
	CreatedDateTime      string            `json:"createdDateTime"`
	LastModifiedDateTime string            `json:"lastModifiedDateTime,omitempty"`
	MessageType          string            `json:"messageType"`
	Importance           string            `json:"importance,omitempty"`
	Subject              string            `json:"subject,omitempty"`
	Body                 MessageBody       `json:"body"`
	From                 *MessageFrom      `json:"from,omitempty"`
	Attachments          []RawAttachment   `json:"attachments,omitempty"`
	Reactions            []json.RawMessage `json:"reactions,omitempty"`
	Mentions             []json.RawMessage `json:"mentions,omitempty"`
}

// MessageBody содержит текст сообщения и его формат (text или html).
type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// tagRegex вырезает HTML-теги из тела сообщения.
var tagRegex = regexp.MustCompile(`<[^>]*>`)

// PlainText возвращает текст тела без HTML-разметки: теги вырезаются,
// сущности разворачиваются, пробелы схлопываются. Сырая разметка при этом
// сохраняется в Content и попадает в JSON-архив без изменений.
func (b MessageBody) PlainText() string {
	if b.ContentType != "html" {
		return b.Content
	}
	text := tagRegex.ReplaceAllString(b.Content, " ")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// MessageFrom описывает отправителя сообщения. Для служебных сообщений
// поле user может отсутствовать.
type MessageFrom struct {
	User *UserIdentity `json:"user,omitempty"`
}

// UserIdentity представляет учётную запись пользователя платформы.
type UserIdentity struct {
	ID                string `json:"id,omitempty"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName,omitempty"`
}

// SenderName возвращает имя отправителя или пустую строку для служебных сообщений.
func (m Message) SenderName() string {
	if m.From == nil || m.From.User == nil {
		return ""
	}
	return m.From.User.DisplayName
}

// SenderEmail возвращает адрес отправителя или пустую строку, если он неизвестен.
func (m Message) SenderEmail() string {
	if m.From == nil || m.From.User == nil {
		return ""
	}
	return m.From.User.UserPrincipalName
}

// RawAttachment представляет структурированную запись вложения из API,
// до классификации.
type RawAttachment struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
	Content     string `json:"content,omitempty"`
}

// Режимы запуска экспорта.
const (
	// RunModeTest обрабатывает только первый чат и помечает файлы экспорта.
	RunModeTest = "test"
	// RunModeProd обрабатывает все чаты.
	RunModeProd = "prod"
)

// Режимы обработки вложений.
const (
	// AttachmentModeCSV — только манифест, без скачивания.
	AttachmentModeCSV = "csv"
	// AttachmentModeDownload — только скачивание, без манифеста.
	AttachmentModeDownload = "download"
	// AttachmentModeBoth — манифест и скачивание.
	AttachmentModeBoth = "both"
)

// AttachmentKind классифицирует вложение по способу его обнаружения.
type AttachmentKind string

const (
	// AttachmentFileReference — структурированная запись со ссылкой на файл в облаке.
	AttachmentFileReference AttachmentKind = "file_reference"
	// AttachmentHostedImage — встроенная картинка, найденная по ссылке в теле сообщения.
	AttachmentHostedImage AttachmentKind = "hosted_image"
	// AttachmentBodyURL — файловая ссылка, извлечённая из текста сообщения.
	AttachmentBodyURL AttachmentKind = "body_url"
	// AttachmentUnknown — структурированная запись нераспознанного типа.
	AttachmentUnknown AttachmentKind = "unknown"
)

// DownloadStatus отражает исход попытки скачивания вложения.
type DownloadStatus string

const (
	DownloadNotAttempted DownloadStatus = "not_attempted"
	DownloadSucceeded    DownloadStatus = "succeeded"
	DownloadFailed       DownloadStatus = "failed"
	DownloadSkipped      DownloadStatus = "skipped"
)

// Attachment — классифицированное вложение сообщения.
// Это наша внутренняя модель, а не структура из JSON.
type Attachment struct {
	Kind AttachmentKind
	// Name — отображаемое имя файла; может быть пустым для ссылок из текста.
	Name string
	// SourceURL — адрес, по которому содержимое доступно напрямую.
	SourceURL string
	// RelayPath — путь внутри облачного диска для повторной попытки через API.
	// Пустое значение означает, что такой путь определить не удалось.
	RelayPath string
	// ContentType — исходный contentType структурированной записи.
	ContentType string
	MessageID   string
	MessageDate string
	Sender      string
	Status      DownloadStatus
	// Note — человекочитаемое пояснение статуса для манифеста.
	Note string
	// LocalPath — путь сохранённого файла при успешном скачивании.
	LocalPath string
}

// ExportRecord — сообщение, дополненное контекстом чата. Единица экспорта:
// одна запись в JSON-архиве и одна строка в таблице.
type ExportRecord struct {
	Message
	ChatID      string `json:"chat_id"`
	ChatTopic   string `json:"chat_topic,omitempty"`
	ChatType    string `json:"chat_type"`
	ChatDisplay string `json:"chat_display"`
}

// Identity описывает аутентифицированного пользователя.
type Identity struct {
	ID                string `json:"id,omitempty"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Token — непрозрачный токен доступа с временем истечения.
// Содержимое токена нигде не разбирается и не логируется.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time
}

// RunStats накапливает итог одного запуска экспорта: кто выгружал,
// сколько чатов и сообщений обработано и какие файлы созданы.
type RunStats struct {
	RunID      string
	Mode       string
	Identity   Identity
	StartedAt  time.Time
	FinishedAt time.Time

	ChatsTotal    int
	ChatsExported int
	// ChatsPartial — чаты, у которых выгрузка оборвалась, но уже полученные
	// сообщения сохранены.
	ChatsPartial int

	Messages           int
	MessagesByChatType map[string]int

	AttachmentsFound      int
	AttachmentsDownloaded int
	AttachmentsSkipped    int
	AttachmentsFailed     int

	OutputFiles []string
}

// AddMessages учитывает count сообщений чата типа chatType.
func (s *RunStats) AddMessages(chatType string, count int) {
	if s.MessagesByChatType == nil {
		s.MessagesByChatType = make(map[string]int)
	}
	s.Messages += count
	s.MessagesByChatType[chatType] += count
}

// Duration возвращает длительность запуска.
func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
