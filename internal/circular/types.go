package circular

import (
	"fmt"
	"net/url"
	"strings"
)

// Summary is one row of the published circular index.
type Summary struct {
	CircularNumber string `json:"circular_number"`
	Date           string `json:"date"`
	Department     string `json:"department"`
	Subject        string `json:"subject"`
	DetailHref     string `json:"detail_href"`
	// URL is the absolute detail page location, filled in by WithURL.
	URL string `json:"url,omitempty"`
}

// WithURL returns a copy of the summary with URL resolved against base.
func (s Summary) WithURL(base string) (Summary, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return Summary{}, fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(s.DetailHref))
	if err != nil {
		return Summary{}, fmt.Errorf("parse detail href %q: %w", s.DetailHref, err)
	}
	out := s
	out.URL = baseURL.ResolveReference(ref).String()
	return out, nil
}

// ArtifactKind discriminates the two shapes a resolved circular can take.
type ArtifactKind string

// Artifact kinds.
const (
	KindPDF  ArtifactKind = "pdf"
	KindHTML ArtifactKind = "html"
)

// ResolvedArtifact is the outcome of resolving one circular detail page.
// Location holds an absolute URL for KindPDF and raw body markup for KindHTML.
type ResolvedArtifact struct {
	Kind     ArtifactKind
	Location string
}

// NewPDFArtifact builds an artifact pointing at a validated remote PDF.
func NewPDFArtifact(pdfURL string) ResolvedArtifact {
	return ResolvedArtifact{Kind: KindPDF, Location: pdfURL}
}

// NewHTMLArtifact builds an artifact carrying captured page markup.
func NewHTMLArtifact(markup string) ResolvedArtifact {
	return ResolvedArtifact{Kind: KindHTML, Location: markup}
}

// IsPDF reports whether the artifact points at a downloadable PDF.
func (a ResolvedArtifact) IsPDF() bool {
	return a.Kind == KindPDF
}

// Format identifies what a LocalDocument contains.
type Format string

// Local document formats.
const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

// ContentType returns the MIME type used when uploading a document of this format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// LocalDocument is a file materialized under the working directory.
type LocalDocument struct {
	Path     string `json:"path"`
	Format   Format `json:"format"`
	ByteSize int64  `json:"byte_size"`
	SHA256   string `json:"sha256,omitempty"`
}

// PDFMagic is the leading signature of every well-formed PDF file.
var PDFMagic = []byte("%PDF")

// Links groups the shareable locations produced for one processed circular.
type Links struct {
	Circular  string `json:"circular"`
	Checklist string `json:"checklist,omitempty"`
}
