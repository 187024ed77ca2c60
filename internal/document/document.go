// Package document writes the local artifacts the pipeline produces itself:
// PDFs synthesized from HTML-only circulars and checklist text files.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/JakeFAU/circular-watch/internal/circular"
	"github.com/JakeFAU/circular-watch/internal/download"
	"github.com/JakeFAU/circular-watch/internal/hash/sha256"
)

// Artifact name prefixes.
const (
	CircularPrefix  = "RBI_Circular"
	ChecklistPrefix = "RBI_Checklist"
)

// Writer materializes synthesized documents under <workdir>/downloads.
type Writer struct {
	dir    string
	clock  circular.Clock
	hasher *sha256.Hasher
	logger *zap.Logger
	// render builds the PDF; swapped in tests to force the HTML fallback.
	render func(path string, summary circular.Summary, lines []string) error
}

// New constructs a Writer rooted at workDir.
func New(workDir string, clock circular.Clock, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		dir:    filepath.Join(workDir, download.SubDir),
		clock:  clock,
		hasher: sha256.New(),
		logger: logger,
		render: writePDF,
	}
}

// FromHTML turns a captured HTML-only circular into a PDF with a header block
// (number, date, subject) followed by the page text. When the PDF cannot be
// produced the raw markup is saved as .html instead.
func (w *Writer) FromHTML(summary circular.Summary, markup string) (circular.LocalDocument, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return circular.LocalDocument{}, fmt.Errorf("create downloads dir: %w", err)
	}
	at := w.clock.Now()

	pdfPath := filepath.Join(w.dir, circular.ArtifactName(CircularPrefix, summary.CircularNumber, at, circular.FormatPDF))
	pdfErr := w.render(pdfPath, summary, TextLines(markup))
	if pdfErr == nil {
		w.logger.Info("pdf synthesized from html", zap.String("path", pdfPath))
		return w.describe(pdfPath, circular.FormatPDF)
	}
	_ = os.Remove(pdfPath)
	w.logger.Warn("pdf synthesis failed, saving html instead", zap.Error(pdfErr))

	htmlPath := filepath.Join(w.dir, circular.ArtifactName(CircularPrefix, summary.CircularNumber, at, circular.FormatHTML))
	if err := os.WriteFile(htmlPath, []byte(markup), 0o644); err != nil {
		return circular.LocalDocument{}, errors.Join(
			fmt.Errorf("synthesize pdf: %w", pdfErr),
			fmt.Errorf("write html %s: %w", htmlPath, err),
		)
	}
	w.logger.Info("html content saved", zap.String("path", htmlPath))
	return w.describe(htmlPath, circular.FormatHTML)
}

// Checklist saves checklist text as RBI_Checklist_<number>_<timestamp>.txt.
func (w *Writer) Checklist(summary circular.Summary, text string) (circular.LocalDocument, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return circular.LocalDocument{}, fmt.Errorf("create downloads dir: %w", err)
	}
	p := filepath.Join(w.dir, circular.ArtifactName(ChecklistPrefix, summary.CircularNumber, w.clock.Now(), circular.FormatText))
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		return circular.LocalDocument{}, fmt.Errorf("write checklist %s: %w", p, err)
	}
	w.logger.Info("checklist saved", zap.String("path", p))
	return w.describe(p, circular.FormatText)
}

func (w *Writer) describe(p string, format circular.Format) (circular.LocalDocument, error) {
	digest, size, err := w.hasher.HashFile(p)
	if err != nil {
		return circular.LocalDocument{}, err
	}
	return circular.LocalDocument{Path: p, Format: format, ByteSize: size, SHA256: digest}, nil
}

func writePDF(path string, summary circular.Summary, lines []string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(summary.CircularNumber, true)
	pdf.SetAuthor("circular-watch", false)
	pdf.SetMargins(20, 20, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(summary.CircularNumber), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "I", 11)
	pdf.CellFormat(0, 6, tr(summary.Date), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(summary.Subject), "B", "C", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
		pdf.Ln(1)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// TextLines reduces markup to its visible text, one line per block element.
func TextLines(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithNodes(textNode("\n"))
	doc.Find("td, th").AppendNodes(textNode(" "))
	doc.Find("p, div, li, tr, table, h1, h2, h3, h4, h5, h6").AppendNodes(textNode("\n"))

	var lines []string
	for _, raw := range strings.Split(doc.Text(), "\n") {
		line := strings.Join(strings.Fields(raw), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func textNode(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}
