// Package download materializes validated PDF URLs as local files.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
	collyfetcher "github.com/JakeFAU/circular-watch/internal/fetcher/colly"
	"github.com/JakeFAU/circular-watch/internal/hash/sha256"
	"github.com/JakeFAU/circular-watch/internal/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	defaultName    = "circular.pdf"
	// SubDir is where downloads land beneath the working directory.
	SubDir = "downloads"
)

// Config controls download behavior.
type Config struct {
	WorkDir   string
	UserAgent string
	Referer   string
	Timeout   time.Duration
	Limiter   collyfetcher.Waiter
}

// Fetcher implements circular.Downloader over plain HTTP GET.
type Fetcher struct {
	cfg    Config
	client *http.Client
	clock  circular.Clock
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, clock circular.Clock, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		clock:  clock,
		logger: logger,
	}
}

// Fetch streams rawURL to <workdir>/downloads under a timestamped name.
// A file that does not start with the PDF signature is logged and still returned.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (circular.LocalDocument, error) {
	if f.cfg.Limiter != nil {
		if err := f.cfg.Limiter.Wait(ctx, rawURL); err != nil {
			return circular.LocalDocument{}, &circular.FetchError{URL: rawURL, Cause: err}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return circular.LocalDocument{}, &circular.FetchError{URL: rawURL, Cause: err}
	}
	f.setHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return circular.LocalDocument{}, &circular.FetchError{URL: rawURL, Cause: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return circular.LocalDocument{}, &circular.FetchError{
			URL:   rawURL,
			Cause: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	dir := filepath.Join(f.cfg.WorkDir, SubDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return circular.LocalDocument{}, &circular.FetchError{URL: rawURL, Cause: fmt.Errorf("create downloads dir: %w", err)}
	}
	target := filepath.Join(dir, FileName(rawURL, f.clock.Now()))

	digest, written, err := writeStream(target, resp.Body)
	if err != nil {
		_ = os.Remove(target)
		return circular.LocalDocument{}, &circular.FetchError{URL: rawURL, Cause: err}
	}
	metrics.ObserveDownload(written)

	doc := circular.LocalDocument{
		Path:     target,
		Format:   circular.FormatPDF,
		ByteSize: written,
		SHA256:   digest,
	}
	f.logger.Info("document downloaded",
		zap.String("url", rawURL),
		zap.String("path", target),
		zap.Int64("bytes", written),
		zap.String("content_type", resp.Header.Get("Content-Type")),
	)

	ok, err := HasPDFSignature(target)
	switch {
	case err != nil:
		f.logger.Warn("could not read back downloaded file", zap.String("path", target), zap.Error(err))
	case !ok:
		f.logger.Warn("downloaded file does not look like a pdf", zap.String("path", target))
	}
	return doc, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", collyfetcher.AcceptHeader)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if f.cfg.Referer != "" {
		req.Header.Set("Referer", f.cfg.Referer)
	}
}

func writeStream(target string, body io.Reader) (string, int64, error) {
	out, err := os.Create(target)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", target, err)
	}
	digest := sha256.NewWriter()
	written, copyErr := io.Copy(io.MultiWriter(out, digest), body)
	closeErr := out.Close()
	if copyErr != nil {
		return "", written, fmt.Errorf("transfer body: %w", copyErr)
	}
	if closeErr != nil {
		return "", written, fmt.Errorf("close %s: %w", target, closeErr)
	}
	return digest.Sum(), written, nil
}

// FileName derives a filesystem-safe, timestamped .pdf name from the URL's last path segment.
func FileName(rawURL string, at time.Time) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = defaultName
	}
	stem := name
	if strings.HasSuffix(strings.ToLower(stem), ".pdf") {
		stem = stem[:len(stem)-len(".pdf")]
	}
	return circular.SafeName(fmt.Sprintf("%s_%s.pdf", stem, at.Format(circular.TimestampLayout)))
}

// HasPDFSignature reports whether the file at p starts with %PDF.
func HasPDFSignature(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", p, err)
	}
	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, len(circular.PDFMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", p, err)
	}
	return bytes.Equal(head, circular.PDFMagic), nil
}
