// Package memory keeps uploaded documents in memory, for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/JakeFAU/circular-watch/internal/storage"
)

// Object is one stored upload.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
}

// BlobStore implements circular.Uploader and returns memory:// URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	order   []string
	// Err, when set, is returned by every Upload.
	Err error
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]Object)}
}

// Upload reads localPath and keeps its content under <folder...>/<base name>.
func (s *BlobStore) Upload(_ context.Context, localPath string, folder []string, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", localPath, err)
	}

	key := storage.ObjectPath("", folder, localPath)
	if _, exists := s.objects[key]; !exists {
		s.order = append(s.order, key)
	}
	s.objects[key] = Object{Path: key, ContentType: contentType, Data: data}
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns a stored object.
func (s *BlobStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys lists stored object keys in upload order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
