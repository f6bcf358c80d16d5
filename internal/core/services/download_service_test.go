package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"teams-chat-exporter/internal/domain"
)

// --- Mocks ---

type mockRelayFetcher struct {
	mock.Mock
}

func (m *mockRelayFetcher) DriveContent(ctx context.Context, drivePath string) ([]byte, error) {
	args := m.Called(ctx, drivePath)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// --- Helpers ---

func newTestDownloadService(t *testing.T, mode string, relay *mockRelayFetcher) (*DownloadServiceImpl, string) {
	t.Helper()

	outDir := t.TempDir()
	s := NewDownloadService(DownloadConfig{
		Mode:      mode,
		OutputDir: outDir,
	}, relay, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.sleep = func(time.Duration) {}

	return s, outDir
}

func testChat() domain.Chat {
	return domain.Chat{ID: "19:abc@thread.v2", Topic: "Проект X", ChatType: "group"}
}

// --- Tests ---

func TestDownloadService_DirectSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("contract-bytes"))
	}))
	defer srv.Close()

	s, outDir := newTestDownloadService(t, domain.AttachmentModeBoth, new(mockRelayFetcher))

	got := s.DownloadAll(context.Background(), testChat(), []domain.Attachment{{
		Kind:      domain.AttachmentFileReference,
		Name:      "contract.pdf",
		SourceURL: srv.URL + "/contract.pdf",
		Status:    domain.DownloadNotAttempted,
	}})

	require.Len(t, got, 1)
	assert.Equal(t, domain.DownloadSucceeded, got[0].Status)
	assert.Equal(t, filepath.Join(outDir, "attachments", "Проект X", "contract.pdf"), got[0].LocalPath)

	data, err := os.ReadFile(got[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "contract-bytes", string(data))
}

func TestDownloadService_RelayFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	relay := new(mockRelayFetcher)
	relay.On("DriveContent", mock.Anything, "/Reports/q3.pdf").
		Return([]byte("relayed-bytes"), nil).
		Once()

	s, _ := newTestDownloadService(t, domain.AttachmentModeBoth, relay)

	got := s.DownloadAll(context.Background(), testChat(), []domain.Attachment{{
		Kind:      domain.AttachmentFileReference,
		Name:      "q3.pdf",
		SourceURL: srv.URL + "/q3.pdf",
		RelayPath: "/Reports/q3.pdf",
		Status:    domain.DownloadNotAttempted,
	}})

	require.Len(t, got, 1)
	assert.Equal(t, domain.DownloadSucceeded, got[0].Status)
	assert.Contains(t, got[0].Note, "через API")

	data, err := os.ReadFile(got[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "relayed-bytes", string(data))
	relay.AssertExpectations(t)
}

func TestDownloadService_BothAttemptsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	relay := new(mockRelayFetcher)
	relay.On("DriveContent", mock.Anything, "/a.pdf").
		Return(nil, errors.New("item not found")).
		Once()

	s, _ := newTestDownloadService(t, domain.AttachmentModeBoth, relay)

	got := s.DownloadAll(context.Background(), testChat(), []domain.Attachment{{
		Kind:      domain.AttachmentFileReference,
		Name:      "a.pdf",
		SourceURL: srv.URL + "/a.pdf",
		RelayPath: "/a.pdf",
		Status:    domain.DownloadNotAttempted,
	}})

	require.Len(t, got, 1)
	assert.Equal(t, domain.DownloadFailed, got[0].Status)
	assert.Contains(t, got[0].Note, "ни напрямую")
	assert.Empty(t, got[0].LocalPath)
}

func TestDownloadService_NoRelayPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s, _ := newTestDownloadService(t, domain.AttachmentModeBoth, new(mockRelayFetcher))

	got := s.DownloadAll(context.Background(), testChat(), []domain.Attachment{{
		Kind:      domain.AttachmentBodyURL,
		Name:      "a.pdf",
		SourceURL: srv.URL + "/a.pdf",
		Status:    domain.DownloadNotAttempted,
	}})

	require.Len(t, got, 1)
	// Без идентификатора в личном диске повторная попытка не угадывается,
	// вложение помечается пропущенным, а не проваленным.
	assert.Equal(t, domain.DownloadSkipped, got[0].Status)
	assert.Contains(t, got[0].Note, "путь для повтора через API неизвестен")
}

func TestDownloadService_HostedImageNeverDownloaded(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	for _, mode := range []string{domain.AttachmentModeCSV, domain.AttachmentModeDownload, domain.AttachmentModeBoth} {
		t.Run(mode, func(t *testing.T) {
			s, outDir := newTestDownloadService(t, mode, new(mockRelayFetcher))

			got := s.DownloadAll(context.Background(), testChat(), []domain.Attachment{{
				Kind:      domain.AttachmentHostedImage,
				Name:      "image_1_1.png",
				SourceURL: srv.URL + "/hosted/$value",
				Status:    domain.DownloadNotAttempted,
			}})

			require.Len(t, got, 1)
			assert.Equal(t, domain.DownloadSkipped, got[0].Status)
			assert.Empty(t, got[0].LocalPath)

			// Каталог вложений даже не создаётся.
			_, err := os.Stat(filepath.Join(outDir, "attachments"))
			assert.True(t, os.IsNotExist(err))
		})
	}

	assert.Zero(t, requests)
}

func TestDownloadService_CSVModeAttemptsNothing(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	relay := new(mockRelayFetcher)
	s, _ := newTestDownloadService(t, domain.AttachmentModeCSV, relay)

	got := s.DownloadAll(context.Background(), testChat(), []domain.Attachment{
		{Kind: domain.AttachmentFileReference, Name: "a.pdf", SourceURL: srv.URL + "/a.pdf", RelayPath: "/a.pdf"},
		{Kind: domain.AttachmentBodyURL, Name: "b.zip", SourceURL: srv.URL + "/b.zip"},
		{Kind: domain.AttachmentHostedImage, Name: "image_1_1.png", SourceURL: srv.URL + "/hosted"},
	})

	require.Len(t, got, 3)
	for _, att := range got {
		assert.Equal(t, domain.DownloadSkipped, att.Status, "kind %s", att.Kind)
	}
	// Ни одного сетевого обращения в режиме csv.
	assert.Zero(t, requests)
	relay.AssertNotCalled(t, "DriveContent", mock.Anything, mock.Anything)
}

func TestDownloadService_CollisionSuffix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	s, outDir := newTestDownloadService(t, domain.AttachmentModeDownload, new(mockRelayFetcher))

	atts := []domain.Attachment{
		{Kind: domain.AttachmentFileReference, Name: "report.pdf", SourceURL: srv.URL + "/1"},
		{Kind: domain.AttachmentFileReference, Name: "report.pdf", SourceURL: srv.URL + "/2"},
		{Kind: domain.AttachmentFileReference, Name: "report.pdf", SourceURL: srv.URL + "/3"},
	}

	got := s.DownloadAll(context.Background(), testChat(), atts)

	require.Len(t, got, 3)
	chatDir := filepath.Join(outDir, "attachments", "Проект X")
	assert.Equal(t, filepath.Join(chatDir, "report.pdf"), got[0].LocalPath)
	assert.Equal(t, filepath.Join(chatDir, "report_1.pdf"), got[1].LocalPath)
	assert.Equal(t, filepath.Join(chatDir, "report_2.pdf"), got[2].LocalPath)
}

func TestDownloadService_PeriodicPause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	outDir := t.TempDir()
	s := NewDownloadService(DownloadConfig{
		Mode:       domain.AttachmentModeDownload,
		OutputDir:  outDir,
		PauseEvery: 2,
		Pause:      500 * time.Millisecond,
	}, new(mockRelayFetcher), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	var slept []time.Duration
	s.sleep = func(d time.Duration) { slept = append(slept, d) }

	atts := make([]domain.Attachment, 5)
	for i := range atts {
		atts[i] = domain.Attachment{Kind: domain.AttachmentBodyURL, Name: "f.txt", SourceURL: srv.URL}
	}

	s.DownloadAll(context.Background(), testChat(), atts)

	// Пауза после каждого второго вложения, но не после последнего.
	require.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, slept)
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"Запрещённые символы", `от/чёт<2024>:"версия?*.pdf`, "от_чёт_2024___версия__.pdf"},
		{"Обычное имя", "report.pdf", "report.pdf"},
		{"Пустое имя", "   ", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFileName(tt.in))
		})
	}

	t.Run("Длинное имя обрезается с сохранением расширения", func(t *testing.T) {
		long := strings.Repeat("ф", 300) + ".docx"
		got := sanitizeFileName(long)
		assert.True(t, strings.HasSuffix(got, ".docx"))
		assert.LessOrEqual(t, len([]rune(got)), 190)
	})
}

func TestUniqueName(t *testing.T) {
	used := make(map[string]bool)

	assert.Equal(t, "a.txt", uniqueName(used, "a.txt"))
	assert.Equal(t, "a_1.txt", uniqueName(used, "a.txt"))
	assert.Equal(t, "a_2.txt", uniqueName(used, "a.txt"))
	assert.Equal(t, "b", uniqueName(used, "b"))
	assert.Equal(t, "b_1", uniqueName(used, "b"))
}
