// Package memory contains an in-memory notifier for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// Notifier stores notifications for inspection.
type Notifier struct {
	mu   sync.RWMutex
	sent []circular.Notification

	// Err, when set, is returned from Notify and nothing is recorded.
	Err error
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// Notify records the notification.
func (n *Notifier) Notify(_ context.Context, note circular.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, note)
	return nil
}

// Sent returns the recorded notifications.
func (n *Notifier) Sent() []circular.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]circular.Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
