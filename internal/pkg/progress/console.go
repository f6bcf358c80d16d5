// Package progress выводит ход экспорта и итоговую сводку в терминал.
package progress

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"teams-chat-exporter/internal/domain"
	"teams-chat-exporter/internal/ports"
)

const separatorWidth = 60

// ConsoleReporter печатает события экспорта в переданный поток.
// Индексы чатов ожидаются начиная с единицы.
type ConsoleReporter struct {
	out  io.Writer
	ok   func(format string, a ...interface{}) string
	warn func(format string, a ...interface{}) string
}

// NewConsoleReporter создает новый экземпляр ConsoleReporter.
// При useColor=false вывод остаётся одноцветным, что нужно при
// перенаправлении в файл.
func NewConsoleReporter(out io.Writer, useColor bool) *ConsoleReporter {
	r := &ConsoleReporter{
		out:  out,
		ok:   fmt.Sprintf,
		warn: fmt.Sprintf,
	}
	if useColor {
		r.ok = color.New(color.FgGreen).SprintfFunc()
		r.warn = color.New(color.FgYellow).SprintfFunc()
	}
	return r
}

var _ ports.ProgressReporter = (*ConsoleReporter)(nil)

// RunStarted печатает, под кем выполнен вход и сколько чатов найдено.
func (r *ConsoleReporter) RunStarted(identity domain.Identity, totalChats int) {
	fmt.Fprintf(r.out, "Авторизован как: %s (%s)\n", identity.DisplayName, identity.UserPrincipalName)
	fmt.Fprintf(r.out, "Найдено чатов: %d\n", totalChats)
	fmt.Fprintln(r.out, strings.Repeat("=", separatorWidth))
}

// ChatStarted печатает строку прогресса перед выгрузкой чата.
func (r *ConsoleReporter) ChatStarted(index, total int, label string) {
	percent := 0.0
	if total > 0 {
		percent = float64(index) / float64(total) * 100
	}
	fmt.Fprintf(r.out, "[%2d/%d] (%5.1f%%) %s\n", index, total, percent, label)
}

// ChatFinished печатает итог выгрузки одного чата.
func (r *ConsoleReporter) ChatFinished(index, total int, messages int, err error) {
	if err != nil {
		fmt.Fprintln(r.out, r.warn("       чат выгружен частично (%d сообщений): %v", messages, err))
		return
	}
	fmt.Fprintln(r.out, r.ok("       выгружено сообщений: %d", messages))
}

// RunFinished печатает итоговую сводку запуска.
func (r *ConsoleReporter) RunFinished(stats *domain.RunStats) {
	labels := []string{"Запуск", "Режим", "Учётная запись", "Чатов", "Сообщений", "Вложений", "Время"}
	width := 0
	for _, l := range labels {
		if w := runewidth.StringWidth(l); w > width {
			width = w
		}
	}

	row := func(label, value string) {
		fmt.Fprintf(r.out, "%s  %s\n", padRight(label, width), value)
	}

	fmt.Fprintln(r.out, strings.Repeat("=", separatorWidth))
	fmt.Fprintln(r.out, "ИТОГИ ЭКСПОРТА")
	fmt.Fprintln(r.out, strings.Repeat("=", separatorWidth))

	row("Запуск", stats.RunID)
	row("Режим", stats.Mode)
	row("Учётная запись", fmt.Sprintf("%s (%s)", stats.Identity.DisplayName, stats.Identity.UserPrincipalName))

	chats := fmt.Sprintf("%d из %d", stats.ChatsExported, stats.ChatsTotal)
	if stats.ChatsPartial > 0 {
		chats = r.warn("%s (частично: %d)", chats, stats.ChatsPartial)
	}
	row("Чатов", chats)
	row("Сообщений", fmt.Sprintf("%d", stats.Messages))

	atts := fmt.Sprintf("найдено %d, скачано %d, пропущено %d",
		stats.AttachmentsFound, stats.AttachmentsDownloaded, stats.AttachmentsSkipped)
	if stats.AttachmentsFailed > 0 {
		atts += r.warn(", с ошибками %d", stats.AttachmentsFailed)
	}
	row("Вложений", atts)
	row("Время", stats.Duration().Round(time.Second).String())

	if len(stats.MessagesByChatType) > 0 {
		fmt.Fprintln(r.out, strings.Repeat("-", separatorWidth))
		fmt.Fprintln(r.out, "Сообщений по типам чатов:")
		types := make([]string, 0, len(stats.MessagesByChatType))
		for chatType := range stats.MessagesByChatType {
			types = append(types, chatType)
		}
		sort.Strings(types)
		for _, chatType := range types {
			fmt.Fprintf(r.out, "  %s  %d\n", padRight(chatType, 12), stats.MessagesByChatType[chatType])
		}
	}

	if len(stats.OutputFiles) > 0 {
		fmt.Fprintln(r.out, strings.Repeat("-", separatorWidth))
		fmt.Fprintln(r.out, "Созданные файлы:")
		for _, f := range stats.OutputFiles {
			fmt.Fprintf(r.out, "  %s\n", f)
		}
	}

	fmt.Fprintln(r.out, strings.Repeat("=", separatorWidth))
}

// padRight дополняет строку пробелами до нужной ширины с учётом
// двуширинных символов.
func padRight(s string, width int) string {
	padding := width - runewidth.StringWidth(s)
	if padding <= 0 {
		return s
	}
	return s + strings.Repeat(" ", padding)
}
