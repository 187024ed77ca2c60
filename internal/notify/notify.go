// Package notify holds the stakeholder notification backends.
//
// Backends live in subpackages (gmail, pubsub, memory); this package provides the
// disabled notifier and a fan-out used when more than one backend is configured.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// Disabled reports every notification as skipped with a fixed reason.
type Disabled struct {
	Reason string
}

// Notify implements circular.Notifier.
func (d Disabled) Notify(context.Context, circular.Notification) error {
	reason := d.Reason
	if reason == "" {
		reason = "notifications disabled"
	}
	return fmt.Errorf("%w: %s", circular.ErrNotifySkipped, reason)
}

// Multi delivers to every notifier in order. Skips are tolerated as long as at
// least one backend delivered; any hard failure is returned.
type Multi []circular.Notifier

// Notify implements circular.Notifier.
func (m Multi) Notify(ctx context.Context, n circular.Notification) error {
	if len(m) == 0 {
		return Disabled{}.Notify(ctx, n)
	}
	var skipped []error
	delivered := false
	for _, notifier := range m {
		err := notifier.Notify(ctx, n)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, circular.ErrNotifySkipped):
			skipped = append(skipped, err)
		default:
			return err
		}
	}
	if !delivered {
		return errors.Join(skipped...)
	}
	return nil
}
