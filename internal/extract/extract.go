// Package extract produces best-effort plain text for checklist generation.
//
// Extraction never fails loudly: a scanned PDF, a corrupt file or blank markup all
// yield ok=false, and the caller simply skips the checklist step.
package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// Extractor dispatches on document format.
type Extractor struct {
	logger *zap.Logger
}

// New constructs an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns text for doc. HTML documents yield markup verbatim, since the
// summarizer copes with tag noise.
func (e *Extractor) Extract(doc circular.LocalDocument, markup string) (string, bool) {
	switch doc.Format {
	case circular.FormatPDF:
		text, err := FromPDF(doc.Path)
		if err != nil {
			e.logger.Warn("pdf text extraction failed", zap.String("path", doc.Path), zap.Error(err))
			return "", false
		}
		if text == "" {
			e.logger.Info("pdf has no extractable text", zap.String("path", doc.Path))
			return "", false
		}
		return text, true
	case circular.FormatHTML:
		return FromHTML(markup)
	default:
		e.logger.Warn("unsupported document format", zap.String("format", string(doc.Format)))
		return "", false
	}
}

// FromPDF returns the plain text of every page that has any, joined by newlines.
func FromPDF(path string) (text string, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := page.GetPlainText(nil)
		if perr != nil {
			return "", fmt.Errorf("page %d: %w", i, perr)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

// FromHTML passes markup through unchanged; blank markup is absent.
func FromHTML(markup string) (string, bool) {
	if strings.TrimSpace(markup) == "" {
		return "", false
	}
	return markup, true
}
