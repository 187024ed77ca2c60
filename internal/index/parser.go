// Package index turns the rendered circular index page into circular summaries.
//
// The source lists the most recent circular first, so the first well-formed row in
// document order is treated as the latest. Dates are published as free text and are
// never compared; if the site changes its ordering, Latest changes with it.
package index

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

const minCells = 4

// Parse scans every table row of markup and returns the rows that look like circulars.
// A usable row has at least four cells, a first cell linking to a detail page (its href
// contains detailMarker) and non-empty link text. Everything else is skipped.
func Parse(markup, detailMarker string, logger *zap.Logger) []circular.Summary {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		logger.Warn("index markup could not be parsed", zap.Error(err))
		return nil
	}

	var (
		summaries []circular.Summary
		skipped   int
	)
	// Rows are visited once each, in document order, whatever their table nesting.
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		summary, ok := parseRow(row, detailMarker)
		if !ok {
			skipped++
			return
		}
		summaries = append(summaries, summary)
	})

	logger.Debug("index parsed", zap.Int("circulars", len(summaries)), zap.Int("skipped_rows", skipped))
	if len(summaries) == 0 {
		logger.Warn("no circulars found in index markup")
	}
	return summaries
}

func parseRow(row *goquery.Selection, detailMarker string) (circular.Summary, bool) {
	cells := row.ChildrenFiltered("td, th")
	if cells.Length() < minCells {
		return circular.Summary{}, false
	}

	link := ownLink(cells.Eq(0))
	href, ok := link.Attr("href")
	if !ok || !strings.Contains(href, detailMarker) {
		return circular.Summary{}, false
	}

	number := strings.TrimSpace(link.Text())
	if number == "" {
		return circular.Summary{}, false
	}

	return circular.Summary{
		CircularNumber: number,
		Date:           cellText(cells.Eq(1)),
		Department:     cellText(cells.Eq(2)),
		Subject:        cellText(cells.Eq(3)),
		DetailHref:     strings.TrimSpace(href),
	}, true
}

// ownLink returns the first link in cell that does not belong to a nested table;
// nested rows are visited on their own.
func ownLink(cell *goquery.Selection) *goquery.Selection {
	return cell.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return a.ParentsUntilSelection(cell).Filter("table").Length() == 0
	}).First()
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}

// Latest returns the first summary, which the source publishes as the most recent.
func Latest(summaries []circular.Summary) (circular.Summary, bool) {
	if len(summaries) == 0 {
		return circular.Summary{}, false
	}
	return summaries[0], true
}
