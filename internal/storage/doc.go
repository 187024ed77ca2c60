// Package storage holds the archive backends that implement circular.Uploader.
//
// Every backend lays files out as <root>/<year>/<Month>/<file name> and returns a
// link that can be shared in the stakeholder notification.
package storage

import (
	"path"
	"path/filepath"
	"strings"
)

// ObjectPath joins a prefix, the logical folder and the file's base name with slashes.
func ObjectPath(prefix string, folder []string, localPath string) string {
	parts := make([]string, 0, len(folder)+2)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	for _, f := range folder {
		if f = strings.Trim(f, "/"); f != "" {
			parts = append(parts, f)
		}
	}
	parts = append(parts, filepath.Base(localPath))
	return path.Join(parts...)
}
