package render

import (
	"context"
	"errors"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// Noop implements circular.Renderer but always fails, for environments without Chrome.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns a RenderError since no browser is available.
func (Noop) Render(_ context.Context, url string, _ ...circular.RenderOption) (string, error) {
	return "", &circular.RenderError{URL: url, Cause: errors.New("headless renderer not configured")}
}
