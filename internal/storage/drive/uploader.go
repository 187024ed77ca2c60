// Package drive archives circular documents in Google Drive folders.
package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Uploader implements circular.Uploader by creating year/month folders under a
// root folder and uploading files into the leaf.
type Uploader struct {
	svc    *drive.Service
	root   string
	logger *zap.Logger

	mu      sync.Mutex
	folders map[string]string
}

// New creates a Drive uploader rooted at rootFolderID.
func New(svc *drive.Service, rootFolderID string, logger *zap.Logger) (*Uploader, error) {
	if svc == nil {
		return nil, fmt.Errorf("drive service is required")
	}
	if rootFolderID == "" {
		return nil, fmt.Errorf("root folder id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		svc:     svc,
		root:    rootFolderID,
		logger:  logger,
		folders: make(map[string]string),
	}, nil
}

// Upload stores localPath in root/folder... and returns its web view link.
func (u *Uploader) Upload(ctx context.Context, localPath string, folder []string, contentType string) (string, error) {
	if strings.TrimSpace(localPath) == "" {
		return "", fmt.Errorf("local path is required")
	}
	parent := u.root
	for _, name := range folder {
		if name == "" {
			continue
		}
		id, err := u.folderID(ctx, name, parent)
		if err != nil {
			return "", err
		}
		parent = id
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() {
		_ = f.Close()
	}()

	meta := &drive.File{
		Name:    filepath.Base(localPath),
		Parents: []string{parent},
	}
	call := u.svc.Files.Create(meta).Fields("id, webViewLink, name").Context(ctx)
	if contentType != "" {
		call = call.Media(f, googleapi.ContentType(contentType))
	} else {
		call = call.Media(f)
	}
	created, err := call.Do()
	if err != nil {
		return "", fmt.Errorf("upload %s to drive: %w", meta.Name, err)
	}
	u.logger.Info("uploaded file to drive",
		zap.String("name", created.Name),
		zap.String("file_id", created.Id),
	)
	return created.WebViewLink, nil
}

// folderID finds a folder named name under parent, creating it when absent.
func (u *Uploader) folderID(ctx context.Context, name, parent string) (string, error) {
	key := parent + "/" + name
	u.mu.Lock()
	defer u.mu.Unlock()
	if id, ok := u.folders[key]; ok {
		return id, nil
	}

	list, err := u.svc.Files.List().
		Q(FolderQuery(name, parent)).
		Spaces("drive").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("find folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		u.folders[key] = list.Files[0].Id
		return list.Files[0].Id, nil
	}

	created, err := u.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parent},
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	u.logger.Info("created drive folder", zap.String("name", name), zap.String("folder_id", created.Id))
	u.folders[key] = created.Id
	return created.Id, nil
}

// FolderQuery builds the Drive search expression for a child folder.
func FolderQuery(name, parent string) string {
	return fmt.Sprintf("name='%s' and mimeType='%s' and '%s' in parents and trashed=false",
		escape(name), folderMimeType, escape(parent))
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
