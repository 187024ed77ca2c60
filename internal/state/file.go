package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// FileStore keeps the last circular number as the sole content of a UTF-8 text file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load returns the stored circular number; a missing or blank file means none.
func (s *FileStore) Load(_ context.Context) (string, bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read state %s: %w", s.path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Save replaces the file content with circularNumber via write-then-rename.
func (s *FileStore) Save(_ context.Context, circularNumber string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", circular.ErrStateWrite, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %w", circular.ErrStateWrite, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(circularNumber); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write %s: %w", circular.ErrStateWrite, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", circular.ErrStateWrite, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename to %s: %w", circular.ErrStateWrite, s.path, err)
	}
	return nil
}
