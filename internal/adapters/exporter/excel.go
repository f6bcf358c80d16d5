package exporter

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

// messagesSheet — имя листа с сообщениями.
const messagesSheet = "Сообщения"

// excelHeaders — порядок и имена колонок таблицы сообщений.
var excelHeaders = []string{
	"id", "createdDateTime", "lastModifiedDateTime", "messageType",
	"importance", "subject", "body", "body_contentType",
	"from_displayName", "from_email",
	"attachments_count", "reactions_count", "mentions_count",
	"chat_id", "chat_topic", "chat_type", "chat_display",
}

// ExcelExporter реализует интерфейс Exporter для записи сообщений в таблицу:
// одна строка на сообщение, плоские колонки. Тело сообщения попадает в
// таблицу без разметки.
type ExcelExporter struct{}

// NewExcelExporter создает новый экземпляр ExcelExporter.
func NewExcelExporter() ports.Exporter {
	return &ExcelExporter{}
}

// Export записывает записи в dir/base.xlsx и возвращает путь файла.
func (e *ExcelExporter) Export(records []domain.ExportRecord, dir, base string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(messagesSheet)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for i, h := range excelHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(messagesSheet, cell, h); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, rec := range records {
		row := i + 2
		values := []any{
			rec.ID,
			rec.CreatedDateTime,
			rec.LastModifiedDateTime,
			rec.MessageType,
			rec.Importance,
			rec.Subject,
			rec.Body.PlainText(),
			rec.Body.ContentType,
			rec.SenderName(),
			rec.SenderEmail(),
			len(rec.Attachments),
			len(rec.Reactions),
			len(rec.Mentions),
			rec.ChatID,
			rec.ChatTopic,
			rec.ChatType,
			rec.ChatDisplay,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(messagesSheet, cell, v); err != nil {
				return "", fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	path := filepath.Join(dir, base+".xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
