// Package app initializes and holds long-lived application services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/JakeFAU/circular-watch/internal/circular"
	"github.com/JakeFAU/circular-watch/internal/clock/system"
	"github.com/JakeFAU/circular-watch/internal/config"
	"github.com/JakeFAU/circular-watch/internal/document"
	"github.com/JakeFAU/circular-watch/internal/download"
	"github.com/JakeFAU/circular-watch/internal/extract"
	collyfetcher "github.com/JakeFAU/circular-watch/internal/fetcher/colly"
	"github.com/JakeFAU/circular-watch/internal/googleauth"
	"github.com/JakeFAU/circular-watch/internal/id/uuid"
	"github.com/JakeFAU/circular-watch/internal/notify"
	gmailnotify "github.com/JakeFAU/circular-watch/internal/notify/gmail"
	pubsubnotify "github.com/JakeFAU/circular-watch/internal/notify/pubsub"
	"github.com/JakeFAU/circular-watch/internal/pipeline"
	"github.com/JakeFAU/circular-watch/internal/ratelimit"
	"github.com/JakeFAU/circular-watch/internal/render"
	"github.com/JakeFAU/circular-watch/internal/resolve"
	"github.com/JakeFAU/circular-watch/internal/state"
	drivestore "github.com/JakeFAU/circular-watch/internal/storage/drive"
	"github.com/JakeFAU/circular-watch/internal/storage/gcs"
	"github.com/JakeFAU/circular-watch/internal/storage/local"
	"github.com/JakeFAU/circular-watch/internal/summarize"
	"github.com/JakeFAU/circular-watch/internal/telemetry"
)

type runner interface {
	Run(ctx context.Context) (pipeline.Outcome, error)
}

type closer struct {
	name string
	fn   func() error
}

// App holds the services shared by the run and serve commands.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	runner runner
	state  circular.StateStore

	// google is built lazily and shared by Drive and Gmail.
	google    *http.Client
	googleErr error
	googleSet bool

	closers []closer
}

// New builds every collaborator selected by cfg. It fails fast when a backend
// that the run cannot do without (state, storage) is unavailable.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("state_backend", cfg.State.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("notify_backend", cfg.Notify.Backend),
	)
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	tp, err := telemetry.InitTracerProvider(ctx, "circularwatch")
	if err != nil {
		return err
	}
	a.onClose("tracer", func() error { return tp.Shutdown(context.Background()) })

	store, err := a.buildState(ctx)
	if err != nil {
		return fmt.Errorf("init state: %w", err)
	}
	a.state = store

	uploader, err := a.buildUploader(ctx)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	cfg := a.cfg
	clock := system.New()
	renderer := render.NewChromedp(render.Config{
		ExecPath:          cfg.Headless.ExecPath,
		UserAgent:         cfg.Headless.UserAgent,
		NavigationTimeout: cfg.NavTimeout(),
		Settle:            cfg.DetailSettle(),
	}, a.logger.Named("render"))
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.HTTP.RequestsPerSecond,
		Burst: cfg.HTTP.Burst,
	})
	validator := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Referer:   cfg.Source.Referer,
		Timeout:   cfg.ValidateTimeout(),
		Limiter:   limiter,
	}, a.logger.Named("validate"))

	deps := pipeline.Deps{
		Renderer: renderer,
		Resolver: resolve.New(renderer, validator, resolve.Config{
			DisallowedMarker: cfg.Source.DisallowedMarker,
			FallbackPatterns: cfg.Source.FallbackPatterns,
			Settle:           cfg.DetailSettle(),
		}, a.logger.Named("resolve")),
		Downloader: download.New(download.Config{
			WorkDir:   cfg.WorkDir,
			UserAgent: cfg.HTTP.UserAgent,
			Referer:   cfg.Source.Referer,
			Timeout:   cfg.DownloadTimeout(),
			Limiter:   limiter,
		}, clock, a.logger.Named("download")),
		Documents: document.New(cfg.WorkDir, clock, a.logger.Named("document")),
		Extractor: extract.New(a.logger.Named("extract")),
		Uploader:  uploader,
		Notifier:  notifier,
		State:     store,
		Clock:     clock,
		IDs:       uuid.New(),
	}
	// Assigned only when present so the interface stays nil when disabled.
	if summarizer := a.buildSummarizer(ctx); summarizer != nil {
		deps.Summarizer = summarizer
	}

	r, err := pipeline.New(pipeline.Config{
		IndexURL:     cfg.Source.IndexURL,
		BaseURL:      cfg.Source.BaseURL,
		DetailMarker: cfg.Source.DetailMarker,
		IndexSettle:  cfg.IndexSettle(),
	}, deps, a.logger.Named("pipeline"))
	if err != nil {
		return err
	}
	a.runner = r
	return nil
}

func (a *App) buildState(ctx context.Context) (circular.StateStore, error) {
	switch a.cfg.State.Backend {
	case "postgres":
		store, err := state.NewPostgresStore(ctx, a.cfg.State.DSN, a.cfg.State.Table)
		if err != nil {
			return nil, err
		}
		a.onClose("postgres", func() error {
			store.Close()
			return nil
		})
		return store, nil
	default:
		return state.NewFileStore(a.cfg.State.Path), nil
	}
}

func (a *App) buildUploader(ctx context.Context) (circular.Uploader, error) {
	switch a.cfg.Storage.Backend {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		a.onClose("gcs", client.Close)
		return gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
	case "drive":
		httpClient, err := a.googleClient(ctx)
		if err != nil {
			return nil, err
		}
		svc, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		return drivestore.New(svc, a.cfg.Storage.DriveFolderID, a.logger.Named("drive"))
	default:
		return local.New(local.Config{BaseDir: a.cfg.Storage.LocalDir})
	}
}

func (a *App) buildNotifier(ctx context.Context) (circular.Notifier, error) {
	switch a.cfg.Notify.Backend {
	case "gmail":
		return a.buildGmail(ctx)
	case "pubsub":
		return a.buildPubSub(ctx)
	case "both":
		mail, err := a.buildGmail(ctx)
		if err != nil {
			return nil, err
		}
		events, err := a.buildPubSub(ctx)
		if err != nil {
			return nil, err
		}
		return notify.Multi{mail, events}, nil
	default:
		return notify.Disabled{Reason: "notify.backend is none"}, nil
	}
}

func (a *App) buildGmail(ctx context.Context) (circular.Notifier, error) {
	httpClient, err := a.googleClient(ctx)
	if errors.Is(err, googleauth.ErrNoCredentials) {
		a.logger.Warn("gmail notifier disabled", zap.Error(err))
		return notify.Disabled{Reason: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return gmailnotify.New(svc, gmailnotify.Config{
		Sender:     a.cfg.Notify.Sender,
		Recipients: a.cfg.Notify.Recipients,
		Signature:  a.cfg.Notify.Signature,
	}, a.logger.Named("gmail"))
}

func (a *App) buildPubSub(ctx context.Context) (circular.Notifier, error) {
	client, err := gpubsub.NewClient(ctx, a.cfg.Notify.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	a.onClose("pubsub", client.Close)
	n := pubsubnotify.New(client.Topic(a.cfg.Notify.Topic), a.logger.Named("pubsub"))
	a.onClose("pubsub topic", func() error {
		n.Stop()
		return nil
	})
	return n, nil
}

func (a *App) buildSummarizer(ctx context.Context) *summarize.Summarizer {
	sc := a.cfg.Summarizer
	if !sc.Enabled {
		a.logger.Info("checklist generation disabled")
		return nil
	}
	if sc.APIKey == "" {
		a.logger.Warn("summarizer.api_key not set, checklist generation disabled")
		return nil
	}
	s, err := summarize.NewGemini(ctx, summarize.Config{
		APIKey:  sc.APIKey,
		Model:   sc.Model,
		Timeout: a.cfg.SummarizerTimeout(),
	}, a.logger.Named("summarize"))
	if err != nil {
		a.logger.Warn("summarizer unavailable, checklist generation disabled", zap.Error(err))
		return nil
	}
	a.onClose("summarizer", s.Close)
	return s
}

func (a *App) googleClient(ctx context.Context) (*http.Client, error) {
	if !a.googleSet {
		a.google, a.googleErr = googleauth.Client(ctx,
			a.cfg.Google.CredentialsFile,
			a.cfg.Google.TokenFile,
			googleauth.DriveFileScope,
			googleauth.GmailSendScope,
		)
		a.googleSet = true
	}
	return a.google, a.googleErr
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Run executes one pipeline run while holding the run lock, so overlapping
// scheduler invocations and HTTP triggers never process the same circular twice.
func (a *App) Run(ctx context.Context) (pipeline.Outcome, error) {
	lock, err := state.AcquireLock(a.cfg.State.LockPath, a.cfg.LockStaleAfter())
	if err != nil {
		return "", err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warn("release run lock", zap.Error(err))
		}
	}()
	return a.runner.Run(ctx)
}

// Ready reports whether the state backend is reachable.
func (a *App) Ready(ctx context.Context) error {
	_, _, err := a.state.Load(ctx)
	return err
}

// Close shuts services down in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}
