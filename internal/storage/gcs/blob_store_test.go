package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	store, err := New(client, Config{Bucket: "test-bucket", Prefix: "RBI"})
	require.NoError(t, err)
	return store
}

func TestUpload(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "RBI_Circular_X_20250102_030405.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 test-data"), 0o600))

	names := make(chan string, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/b/test-bucket/o")
		name := r.URL.Query().Get("name")
		select {
		case names <- name:
		default:
		}

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "test-data")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"bucket": "test-bucket", "name": %q}`, name)
	})

	store := newTestStore(t, handler)
	link, err := store.Upload(context.Background(), src, []string{"2025", "January"}, "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "RBI/2025/January/RBI_Circular_X_20250102_030405.pdf", <-names)
	assert.Equal(t,
		"https://storage.cloud.google.com/test-bucket/RBI/2025/January/RBI_Circular_X_20250102_030405.pdf",
		link)
}

func TestUploadServerError(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o600))

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprintln(w, `{"error": {"code": 403, "message": "forbidden"}}`)
	})

	store := newTestStore(t, handler)
	_, err := store.Upload(context.Background(), src, []string{"2025"}, "application/pdf")
	require.Error(t, err)
}

func TestUploadMissingFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.NotFoundHandler())
	_, err := store.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), nil, "")
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() {
		_ = client.Close()
	}()
	_, err = New(client, Config{})
	require.Error(t, err)
}

func TestBrowserLinkEscapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://storage.cloud.google.com/b/2025/My%20File.pdf", BrowserLink("b", "2025/My File.pdf"))
}
