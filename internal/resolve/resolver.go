// Package resolve decides which document represents a circular: a validated PDF or the detail page itself.
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// IDPlaceholder is replaced by the detail page identifier in fallback URL templates.
const IDPlaceholder = "{id}"

// MaxFallbackPatterns bounds the number of identifier-derived guesses.
const MaxFallbackPatterns = 3

// Config controls candidate discovery.
type Config struct {
	// DisallowedMarker excludes candidates whose URL contains it (case-insensitive).
	DisallowedMarker string
	// FallbackPatterns are tried in order when the page offers no valid PDF.
	FallbackPatterns []string
	// Settle is the post-readiness delay used when rendering the detail page.
	Settle time.Duration
}

// Resolver implements circular.Resolver.
type Resolver struct {
	renderer  circular.Renderer
	validator circular.Validator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Resolver.
func New(renderer circular.Renderer, validator circular.Validator, cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.FallbackPatterns) > MaxFallbackPatterns {
		cfg.FallbackPatterns = cfg.FallbackPatterns[:MaxFallbackPatterns]
	}
	return &Resolver{
		renderer:  renderer,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
	}
}

// Resolve renders detailURL and returns the first validated PDF candidate in scan order:
// hyperlinks, then embedded objects, then identifier-derived guesses. When none validates,
// the rendered body markup is returned as an HTML artifact.
func (r *Resolver) Resolve(ctx context.Context, detailURL, circularNumber string) (circular.ResolvedArtifact, error) {
	logger := r.logger.With(zap.String("circular", circularNumber), zap.String("detail_url", detailURL))

	var opts []circular.RenderOption
	if r.cfg.Settle > 0 {
		opts = append(opts, circular.WithSettle(r.cfg.Settle))
	}
	markup, err := r.renderer.Render(ctx, detailURL, opts...)
	if err != nil {
		return circular.ResolvedArtifact{}, fmt.Errorf("render detail page: %w", err)
	}

	base, err := url.Parse(detailURL)
	if err != nil {
		return circular.ResolvedArtifact{}, fmt.Errorf("parse detail url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return circular.ResolvedArtifact{}, &circular.RenderError{URL: detailURL, Cause: fmt.Errorf("parse markup: %w", err)}
	}

	candidates := r.filter(append(linkCandidates(doc, base), embedCandidates(doc, base)...), logger)
	logger.Debug("pdf candidates discovered", zap.Strings("candidates", candidates))
	if found, ok := r.firstValid(ctx, candidates); ok {
		logger.Info("pdf resolved from detail page", zap.String("pdf_url", found))
		return circular.NewPDFArtifact(found), nil
	}

	if id := circularID(base); id != "" {
		guesses := r.filter(r.fallbackCandidates(id), logger)
		logger.Debug("trying identifier-derived urls", zap.String("id", id), zap.Strings("candidates", guesses))
		if found, ok := r.firstValid(ctx, guesses); ok {
			logger.Info("pdf resolved from identifier", zap.String("pdf_url", found))
			return circular.NewPDFArtifact(found), nil
		}
	}

	body, err := doc.Find("body").First().Html()
	if err != nil {
		return circular.ResolvedArtifact{}, &circular.RenderError{URL: detailURL, Cause: fmt.Errorf("capture body: %w", err)}
	}
	logger.Info("no pdf available, treating circular as html-only", zap.Int("bytes", len(body)))
	return circular.NewHTMLArtifact(body), nil
}

// firstValid validates candidates in order and stops at the first accepted one.
func (r *Resolver) firstValid(ctx context.Context, candidates []string) (string, bool) {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return "", false
		}
		if r.validator.Validate(ctx, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// filter drops disallowed candidates and exact duplicates, preserving order.
func (r *Resolver) filter(candidates []string, logger *zap.Logger) []string {
	marker := strings.ToLower(r.cfg.DisallowedMarker)
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if marker != "" && strings.Contains(strings.ToLower(candidate), marker) {
			logger.Debug("candidate excluded by marker", zap.String("url", candidate))
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

func (r *Resolver) fallbackCandidates(id string) []string {
	escaped := url.PathEscape(id)
	out := make([]string, 0, len(r.cfg.FallbackPatterns))
	for _, pattern := range r.cfg.FallbackPatterns {
		out = append(out, strings.ReplaceAll(pattern, IDPlaceholder, escaped))
	}
	return out
}

func linkCandidates(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasSuffix(strings.ToLower(stripQuery(href)), ".pdf") {
			return
		}
		if abs, ok := absolute(base, href); ok {
			out = append(out, abs)
		}
	})
	return out
}

func embedCandidates(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("embed, object, iframe, frame").Each(func(_ int, s *goquery.Selection) {
		ref := strings.TrimSpace(s.AttrOr("src", ""))
		if ref == "" {
			ref = strings.TrimSpace(s.AttrOr("data", ""))
		}
		if ref == "" || !strings.Contains(strings.ToLower(ref), ".pdf") {
			return
		}
		if abs, ok := absolute(base, ref); ok {
			out = append(out, abs)
		}
	})
	return out
}

func absolute(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// circularID extracts the Id query value from a detail page URL.
func circularID(detail *url.URL) string {
	return strings.TrimSpace(detail.Query().Get("Id"))
}
