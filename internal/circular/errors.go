package circular

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the pipeline stages.
var (
	ErrRender      = errors.New("render failed")
	ErrFetch       = errors.New("fetch failed")
	ErrNoCirculars = errors.New("no circulars found in index")
	ErrStateWrite  = errors.New("state write failed")
	ErrLocked      = errors.New("another run holds the lock")

	// ErrNotifySkipped marks a deliberate non-delivery; the run still counts as processed.
	ErrNotifySkipped = errors.New("notification skipped")
)

// RenderError reports a headless rendering failure for a URL.
type RenderError struct {
	URL   string
	Cause error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.URL, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Cause}
}

// FetchError reports a failed document download.
type FetchError struct {
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Cause}
}
