// Package pipeline sequences one circular-watch run: discover the latest circular,
// skip it if already processed, otherwise resolve, archive, summarize, notify and
// finally record it as processed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
	"github.com/JakeFAU/circular-watch/internal/extract"
	"github.com/JakeFAU/circular-watch/internal/index"
	"github.com/JakeFAU/circular-watch/internal/metrics"
	"github.com/JakeFAU/circular-watch/internal/telemetry"
)

// Outcome summarizes a successful run.
type Outcome string

// Run outcomes.
const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeProcessed Outcome = "processed"
	outcomeFailed    Outcome = "failed"
)

// DocumentWriter materializes synthesized circulars and checklists on disk.
type DocumentWriter interface {
	FromHTML(summary circular.Summary, markup string) (circular.LocalDocument, error)
	Checklist(summary circular.Summary, text string) (circular.LocalDocument, error)
}

// TextExtractor turns a local document into plain text when possible.
type TextExtractor interface {
	Extract(doc circular.LocalDocument, markup string) (string, bool)
}

// Config is the immutable subset of configuration the runner needs.
type Config struct {
	IndexURL     string
	BaseURL      string
	DetailMarker string
	IndexSettle  time.Duration
}

// Deps are the collaborators of a Runner. Summarizer may be nil, which disables
// checklist generation.
type Deps struct {
	Renderer   circular.Renderer
	Resolver   circular.Resolver
	Downloader circular.Downloader
	Documents  DocumentWriter
	Extractor  TextExtractor
	Uploader   circular.Uploader
	Summarizer circular.Summarizer
	Notifier   circular.Notifier
	State      circular.StateStore
	Clock      circular.Clock
	IDs        circular.IDGenerator
}

// Runner executes pipeline runs. It is safe to reuse across runs but not to run
// concurrently; callers serialize with a lock.
type Runner struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	tracer trace.Tracer
}

// New validates deps and builds a Runner.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Runner, error) {
	if cfg.IndexURL == "" || cfg.BaseURL == "" || cfg.DetailMarker == "" {
		return nil, fmt.Errorf("index url, base url and detail marker are required")
	}
	required := map[string]any{
		"renderer":   deps.Renderer,
		"resolver":   deps.Resolver,
		"downloader": deps.Downloader,
		"documents":  deps.Documents,
		"extractor":  deps.Extractor,
		"uploader":   deps.Uploader,
		"notifier":   deps.Notifier,
		"state":      deps.State,
		"clock":      deps.Clock,
		"ids":        deps.IDs,
	}
	for name, dep := range required {
		if dep == nil {
			return nil, fmt.Errorf("pipeline dependency %s is required", name)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger, tracer: telemetry.Tracer()}, nil
}

// Run performs one pass. State is only advanced after the notification step
// succeeded or was deliberately skipped; any earlier failure leaves it untouched
// so the next run retries the same circular.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	start := r.deps.Clock.Now()
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return outcomeFailed, fmt.Errorf("generate run id: %w", err)
	}
	logger := r.logger.With(zap.String("run_id", runID))
	ctx, span := r.tracer.Start(ctx, "circular.run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	outcome, err := r.run(ctx, runID, logger)
	elapsed := r.deps.Clock.Now().Sub(start)
	if err != nil {
		outcome = outcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		logger.Info("run finished", zap.String("outcome", string(outcome)), zap.Duration("elapsed", elapsed))
	}
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	metrics.ObserveRun(string(outcome), elapsed)
	return outcome, err
}

func (r *Runner) run(ctx context.Context, runID string, logger *zap.Logger) (Outcome, error) {
	last, seen, err := r.deps.State.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}
	if seen {
		logger.Info("last processed circular", zap.String("circular_number", last))
	}

	latest, err := r.latest(ctx, logger)
	if err != nil {
		return "", err
	}
	logger = logger.With(zap.String("circular_number", latest.CircularNumber))
	if seen && latest.CircularNumber == last {
		logger.Info("no new circular")
		return OutcomeUnchanged, nil
	}
	logger.Info("new circular detected", zap.String("subject", latest.Subject), zap.String("detail_url", latest.URL))

	artifact, err := r.resolve(ctx, latest)
	if err != nil {
		return "", err
	}

	doc, err := r.materialize(ctx, latest, artifact, logger)
	if err != nil {
		return "", err
	}

	text, ok := r.text(doc, artifact)

	folder := circular.FolderFor(r.deps.Clock.Now())
	circularLink, err := r.upload(ctx, "circular.upload", doc, folder)
	if err != nil {
		return "", fmt.Errorf("upload circular: %w", err)
	}
	logger.Info("circular archived", zap.String("link", circularLink), zap.String("path", doc.Path))

	links := circular.Links{Circular: circularLink}
	if ok {
		links.Checklist = r.checklist(ctx, latest, text, folder, logger)
	} else {
		logger.Info("no text available, skipping checklist")
	}

	note := circular.Notification{
		RunID:    runID,
		Circular: latest,
		Links:    links,
		Kind:     artifact.Kind,
		SHA256:   doc.SHA256,
	}
	if err := r.notify(ctx, note); err != nil {
		if !errors.Is(err, circular.ErrNotifySkipped) {
			return "", fmt.Errorf("notify: %w", err)
		}
		logger.Warn("notification skipped", zap.Error(err))
	}

	if err := r.deps.State.Save(ctx, latest.CircularNumber); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	logger.Info("state updated")
	return OutcomeProcessed, nil
}

func (r *Runner) latest(ctx context.Context, logger *zap.Logger) (circular.Summary, error) {
	ctx, span := r.tracer.Start(ctx, "circular.index")
	defer span.End()

	markup, err := r.deps.Renderer.Render(ctx, r.cfg.IndexURL, circular.WithSettle(r.cfg.IndexSettle))
	if err != nil {
		return circular.Summary{}, fmt.Errorf("render index: %w", err)
	}
	summaries := index.Parse(markup, r.cfg.DetailMarker, logger)
	span.SetAttributes(attribute.Int("rows", len(summaries)))
	latest, ok := index.Latest(summaries)
	if !ok {
		return circular.Summary{}, circular.ErrNoCirculars
	}
	latest, err = latest.WithURL(r.cfg.BaseURL)
	if err != nil {
		return circular.Summary{}, err
	}
	return latest, nil
}

func (r *Runner) resolve(ctx context.Context, latest circular.Summary) (circular.ResolvedArtifact, error) {
	ctx, span := r.tracer.Start(ctx, "circular.resolve")
	defer span.End()

	artifact, err := r.deps.Resolver.Resolve(ctx, latest.URL, latest.CircularNumber)
	if err != nil {
		return circular.ResolvedArtifact{}, fmt.Errorf("resolve %s: %w", latest.URL, err)
	}
	span.SetAttributes(attribute.String("kind", string(artifact.Kind)))
	return artifact, nil
}

// materialize downloads PDFs and synthesizes a document for HTML-only circulars.
func (r *Runner) materialize(
	ctx context.Context,
	latest circular.Summary,
	artifact circular.ResolvedArtifact,
	logger *zap.Logger,
) (circular.LocalDocument, error) {
	ctx, span := r.tracer.Start(ctx, "circular.materialize")
	defer span.End()

	if artifact.IsPDF() {
		logger.Info("downloading pdf", zap.String("url", artifact.Location))
		doc, err := r.deps.Downloader.Fetch(ctx, artifact.Location)
		if err != nil {
			return circular.LocalDocument{}, fmt.Errorf("download: %w", err)
		}
		return doc, nil
	}

	logger.Info("no pdf found, synthesizing document from page body")
	doc, err := r.deps.Documents.FromHTML(latest, artifact.Location)
	if err != nil {
		return circular.LocalDocument{}, fmt.Errorf("synthesize document: %w", err)
	}
	return doc, nil
}

func (r *Runner) upload(ctx context.Context, stage string, doc circular.LocalDocument, folder []string) (string, error) {
	ctx, span := r.tracer.Start(ctx, stage)
	defer span.End()
	return r.deps.Uploader.Upload(ctx, doc.Path, folder, doc.Format.ContentType())
}

// text prefers the captured markup for HTML circulars, whatever file was written.
func (r *Runner) text(doc circular.LocalDocument, artifact circular.ResolvedArtifact) (string, bool) {
	if artifact.Kind == circular.KindHTML {
		return extract.FromHTML(artifact.Location)
	}
	return r.deps.Extractor.Extract(doc, "")
}

// checklist returns the uploaded checklist link, or "" when any step fails.
func (r *Runner) checklist(
	ctx context.Context,
	latest circular.Summary,
	text string,
	folder []string,
	logger *zap.Logger,
) string {
	if r.deps.Summarizer == nil {
		logger.Info("summarizer disabled, skipping checklist")
		return ""
	}
	ctx, span := r.tracer.Start(ctx, "circular.checklist")
	defer span.End()

	checklist, err := r.deps.Summarizer.Checklist(ctx, text)
	if err != nil {
		logger.Warn("checklist generation failed", zap.Error(err))
		return ""
	}
	doc, err := r.deps.Documents.Checklist(latest, checklist)
	if err != nil {
		logger.Warn("checklist file write failed", zap.Error(err))
		return ""
	}
	link, err := r.upload(ctx, "checklist.upload", doc, folder)
	if err != nil {
		logger.Warn("checklist upload failed", zap.Error(err))
		return ""
	}
	logger.Info("checklist archived", zap.String("link", link))
	return link
}

func (r *Runner) notify(ctx context.Context, note circular.Notification) error {
	ctx, span := r.tracer.Start(ctx, "circular.notify")
	defer span.End()
	return r.deps.Notifier.Notify(ctx, note)
}
