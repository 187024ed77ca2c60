// Package gmail emails circular notifications through the Gmail API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// Config describes the envelope of every notification.
type Config struct {
	Sender     string
	Recipients []string
	Signature  []string
}

// Notifier implements circular.Notifier by sending one message per circular.
type Notifier struct {
	svc    *gmail.Service
	cfg    Config
	logger *zap.Logger
}

// New builds a Gmail notifier.
func New(svc *gmail.Service, cfg Config, logger *zap.Logger) (*Notifier, error) {
	if svc == nil {
		return nil, fmt.Errorf("gmail service is required")
	}
	if cfg.Sender == "" {
		return nil, fmt.Errorf("sender is required")
	}
	if len(cfg.Recipients) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{svc: svc, cfg: cfg, logger: logger}, nil
}

// Notify sends the notification as the authenticated user.
func (n *Notifier) Notify(ctx context.Context, note circular.Notification) error {
	raw, err := Compose(n.cfg, note)
	if err != nil {
		return err
	}
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	sent, err := n.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	n.logger.Info("notification email sent",
		zap.String("message_id", sent.Id),
		zap.String("circular_number", note.Circular.CircularNumber),
		zap.Int("recipients", len(n.cfg.Recipients)),
	)
	return nil
}
