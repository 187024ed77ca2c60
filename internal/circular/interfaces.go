package circular

import (
	"context"
	"time"
)

// Renderer returns fully rendered markup for script-populated pages.
type Renderer interface {
	Render(ctx context.Context, url string, opts ...RenderOption) (string, error)
}

// RenderOption tweaks a single render call.
type RenderOption func(*RenderOptions)

// RenderOptions carries per-call render settings.
type RenderOptions struct {
	Settle time.Duration
}

// WithSettle overrides the delay allowed for deferred scripts after the body appears.
func WithSettle(d time.Duration) RenderOption {
	return func(o *RenderOptions) {
		o.Settle = d
	}
}

// Validator decides whether a URL serves a PDF, using a header-only request.
type Validator interface {
	Validate(ctx context.Context, url string) bool
}

// Resolver turns a detail page into a ResolvedArtifact.
type Resolver interface {
	Resolve(ctx context.Context, detailURL, circularNumber string) (ResolvedArtifact, error)
}

// Downloader materializes a validated PDF URL as a local file.
type Downloader interface {
	Fetch(ctx context.Context, url string) (LocalDocument, error)
}

// Uploader archives a local file under a logical folder and returns a shareable link.
type Uploader interface {
	Upload(ctx context.Context, localPath string, folder []string, contentType string) (string, error)
}

// Summarizer derives a compliance checklist from circular text.
type Summarizer interface {
	Checklist(ctx context.Context, text string) (string, error)
}

// Notification is what a Notifier receives for a processed circular.
type Notification struct {
	RunID    string       `json:"run_id"`
	Circular Summary      `json:"circular"`
	Links    Links        `json:"links"`
	Kind     ArtifactKind `json:"kind"`
	SHA256   string       `json:"sha256,omitempty"`
}

// Notifier delivers a Notification to stakeholders.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StateStore persists the last processed circular number.
type StateStore interface {
	Load(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, circularNumber string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests for integrity records.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
