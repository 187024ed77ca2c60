// Package local archives circular documents on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/circular-watch/internal/storage"
)

// Config captures the parameters for the local filesystem archive.
type Config struct {
	// BaseDir is the root directory of the archive.
	BaseDir string
}

// BlobStore implements circular.Uploader by copying files under BaseDir.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem archive, creating BaseDir when needed.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	abs, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	return &BlobStore{baseDir: abs}, nil
}

// Upload copies localPath into <BaseDir>/<folder...>/ and returns a file:// URI.
func (s *BlobStore) Upload(_ context.Context, localPath string, folder []string, _ string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", fmt.Errorf("local path is required")
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(storage.ObjectPath("", folder, localPath)))

	// Folder names come from dates, but keep writes inside the archive regardless.
	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	if err := copyFile(localPath, fullPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("file://%s", filepath.ToSlash(fullPath)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
