package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doc.pdf")
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Cell(0, 10, text)
		}
	}
	require.NoError(t, doc.OutputFileAndClose(p))
	return p
}

func TestFromPDFJoinsPagesAndSkipsEmpty(t *testing.T) {
	t.Parallel()

	p := writePDF(t, "Guidelines on X", "", "Annex Y")

	text, err := FromPDF(p)
	require.NoError(t, err)
	assert.Contains(t, text, "Guidelines")
	assert.Contains(t, text, "Annex")
	assert.Contains(t, text, "\n")
}

func TestFromPDFNoText(t *testing.T) {
	t.Parallel()

	text, err := FromPDF(writePDF(t, ""))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestFromPDFCorruptFile(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "corrupt.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4\nthis is not really a pdf"), 0o600))

	_, err := FromPDF(p)
	require.Error(t, err)
}

func TestExtractDispatch(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())

	text, ok := e.Extract(circular.LocalDocument{Path: writePDF(t, "Guidelines on X"), Format: circular.FormatPDF}, "")
	require.True(t, ok)
	assert.Contains(t, text, "Guidelines")

	_, ok = e.Extract(circular.LocalDocument{Path: writePDF(t, ""), Format: circular.FormatPDF}, "")
	assert.False(t, ok)

	_, ok = e.Extract(circular.LocalDocument{Path: filepath.Join(t.TempDir(), "missing.pdf"), Format: circular.FormatPDF}, "")
	assert.False(t, ok)

	markup := "<div><p>Guidelines on X</p></div>"
	text, ok = e.Extract(circular.LocalDocument{Format: circular.FormatHTML}, markup)
	require.True(t, ok)
	assert.Equal(t, markup, text)

	_, ok = e.Extract(circular.LocalDocument{Format: circular.FormatText}, "ignored")
	assert.False(t, ok)
}

func TestFromHTML(t *testing.T) {
	t.Parallel()

	_, ok := FromHTML("  \n\t ")
	assert.False(t, ok)

	text, ok := FromHTML("<p>x</p>")
	assert.True(t, ok)
	assert.Equal(t, "<p>x</p>", text)
}
