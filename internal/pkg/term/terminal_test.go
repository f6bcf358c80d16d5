package term

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Terminal{
		in:  bufio.NewReader(strings.NewReader(input)),
		out: out,
	}, out
}

func TestShowDeviceCode(t *testing.T) {
	term, out := newTestTerminal("")

	term.ShowDeviceCode("https://microsoft.com/devicelogin", "ABCD-EFGH")

	text := out.String()
	assert.Contains(t, text, "https://microsoft.com/devicelogin")
	assert.Contains(t, text, "ABCD-EFGH")
	assert.Contains(t, text, "не закрывая терминал")
}

func TestChoose(t *testing.T) {
	t.Run("явный выбор", func(t *testing.T) {
		term, _ := newTestTerminal("2\n")
		idx, err := term.Choose("Выберите файл", 3)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	})

	t.Run("пустой ввод означает первый вариант", func(t *testing.T) {
		term, _ := newTestTerminal("\n")
		idx, err := term.Choose("Выберите файл", 3)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("номер вне диапазона", func(t *testing.T) {
		term, _ := newTestTerminal("7\n")
		_, err := term.Choose("Выберите файл", 3)
		assert.Error(t, err)
	})

	t.Run("не число", func(t *testing.T) {
		term, _ := newTestTerminal("abc\n")
		_, err := term.Choose("Выберите файл", 3)
		assert.Error(t, err)
	})
}
