package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal обеспечивает интерактивное взаимодействие с пользователем:
// показ инструкций входа по коду устройства и выбор файла экспорта.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	outfd int
}

// NewTerminal создает новый экземпляр Terminal поверх стандартных потоков.
func NewTerminal() *Terminal {
	return &Terminal{
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
		outfd: int(os.Stdout.Fd()),
	}
}

// IsInteractive сообщает, подключён ли вывод к терминалу.
func (t *Terminal) IsInteractive() bool {
	return term.IsTerminal(t.outfd)
}

// ShowDeviceCode выводит инструкции входа по коду устройства.
// Пользователь открывает страницу в браузере и вводит там код,
// терминал в это время должен оставаться открытым.
func (t *Terminal) ShowDeviceCode(verificationURL, userCode string) {
	sep := strings.Repeat("=", 60)
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, sep)
	fmt.Fprintln(t.out, "ИНСТРУКЦИИ ДЛЯ ВХОДА")
	fmt.Fprintln(t.out, sep)
	fmt.Fprintf(t.out, "1. Откройте в браузере страницу: %s\n", verificationURL)
	fmt.Fprintf(t.out, "2. Введите код: %s\n", userCode)
	fmt.Fprintln(t.out, "3. Войдите под своей рабочей учётной записью")
	fmt.Fprintln(t.out, "4. Дождитесь завершения, не закрывая терминал")
	fmt.Fprintln(t.out, sep)
}

// Choose предлагает выбрать номер в диапазоне 1..max и возвращает индекс
// 0..max-1. Пустой ввод означает первый вариант.
func (t *Terminal) Choose(prompt string, max int) (int, error) {
	fmt.Fprintf(t.out, "%s [1-%d, Enter = 1]: ", prompt, max)

	line, err := t.in.ReadString('\n')
	if err != nil {
		return 0, xerrors.Errorf("failed to read selection: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > max {
		return 0, xerrors.Errorf("invalid selection %q", line)
	}
	return n - 1, nil
}
