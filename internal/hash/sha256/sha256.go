// Package sha256 computes the digests recorded for archived circular documents.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// Hasher implements circular.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashFile streams the file at path through SHA-256 and returns the hex digest and size.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	w := NewWriter()
	n, err := io.Copy(w, f)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	return w.Sum(), n, nil
}

// Writer accumulates a digest from everything written to it, for use with io.MultiWriter.
type Writer struct {
	h hash.Hash
}

// NewWriter returns an empty digest writer.
func NewWriter() *Writer {
	return &Writer{h: sha256.New()}
}

// Write adds p to the running digest. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	return w.h.Write(p)
}

// Sum returns the hex digest of everything written so far.
func (w *Writer) Sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}
