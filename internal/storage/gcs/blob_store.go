// Package gcs archives circular documents in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	archive "github.com/JakeFAU/circular-watch/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore implements circular.Uploader against a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed archive.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Upload streams localPath to <prefix>/<folder...>/<base name> and returns the
// authenticated browser link for the object.
func (s *BlobStore) Upload(ctx context.Context, localPath string, folder []string, contentType string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", fmt.Errorf("local path is required")
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	object := archive.ObjectPath(s.prefix, folder, localPath)
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, f); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return BrowserLink(s.bucket, object), nil
}

// BrowserLink returns the console download link for an object.
func BrowserLink(bucket, object string) string {
	return fmt.Sprintf("https://storage.cloud.google.com/%s/%s", bucket, (&url.URL{Path: object}).EscapedPath())
}
