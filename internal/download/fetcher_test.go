package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/circular-watch/internal/circular"
	"github.com/JakeFAU/circular-watch/internal/clock/system"
	"github.com/JakeFAU/circular-watch/internal/hash/sha256"
)

var fixedAt = time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)

func newFetcher(t *testing.T, logger *zap.Logger) (*Fetcher, string) {
	t.Helper()
	dir := t.TempDir()
	return New(Config{WorkDir: dir, UserAgent: "desk-agent", Referer: "https://rbi.org.in/", Timeout: 2 * time.Second},
		system.Fixed{At: fixedAt}, logger), dir
}

func TestFetchPDF(t *testing.T) {
	t.Parallel()

	body := []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	f, dir := newFetcher(t, zap.New(core))

	doc, err := f.Fetch(context.Background(), srv.URL+"/rdocs/notification/PDFs/NT45.PDF?v=2")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, SubDir, "NT45_20250102_030405.pdf"), doc.Path)
	assert.Equal(t, circular.FormatPDF, doc.Format)
	assert.Equal(t, int64(len(body)), doc.ByteSize)
	want, _ := sha256.New().Hash(body)
	assert.Equal(t, want, doc.SHA256)

	onDisk, err := os.ReadFile(doc.Path)
	require.NoError(t, err)
	assert.Equal(t, body, onDisk)
	assert.Zero(t, logs.Len(), "valid pdf should not warn")

	got := <-headers
	assert.Equal(t, "desk-agent", got.Get("User-Agent"))
	assert.Equal(t, "https://rbi.org.in/", got.Get("Referer"))
	assert.Contains(t, got.Get("Accept"), "application/pdf")
}

func TestFetchNonPDFWarnsButReturns(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("<html>login required</html>"))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	f, _ := newFetcher(t, zap.New(core))

	doc, err := f.Fetch(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.FileExists(t, doc.Path)
	assert.Equal(t, 1, logs.FilterMessage("downloaded file does not look like a pdf").Len())
}

func TestFetchBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f, dir := newFetcher(t, nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/missing.pdf")
	require.ErrorIs(t, err, circular.ErrFetch)

	var fetchErr *circular.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, fetchErr.Error(), "404")
	assert.NoDirExists(t, filepath.Join(dir, SubDir))
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/doc.pdf"
	srv.Close()

	f, _ := newFetcher(t, nil)
	_, err := f.Fetch(context.Background(), url)
	require.ErrorIs(t, err, circular.ErrFetch)
}

func TestFetchTruncatedTransferRemovesPartialFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write([]byte("%PDF-1.4 partial"))
	}))
	defer srv.Close()

	f, dir := newFetcher(t, nil)
	_, err := f.Fetch(context.Background(), srv.URL+"/doc.pdf")
	require.ErrorIs(t, err, circular.ErrFetch)

	entries, readErr := os.ReadDir(filepath.Join(dir, SubDir))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://rbidocs.rbi.org.in/rdocs/content/pdfs/12830.pdf", "12830_20250102_030405.pdf"},
		{"https://x.org/a/Report%20Final.PDF", "Report_Final_20250102_030405.pdf"},
		{"https://x.org/Scripts/BS_PressReleaseDisplay.aspx?prid=9999", "BS_PressReleaseDisplay.aspx_20250102_030405.pdf"},
		{"https://x.org/", "circular_20250102_030405.pdf"},
		{"https://x.org", "circular_20250102_030405.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(tt.url, fixedAt), tt.url)
	}
}

func TestHasPDFSignature(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}

	ok, err := HasPDFSignature(write("good.pdf", "%PDF-1.5"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasPDFSignature(write("bad.pdf", "GIF89a"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = HasPDFSignature(write("short.pdf", "%P"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HasPDFSignature(filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
}
