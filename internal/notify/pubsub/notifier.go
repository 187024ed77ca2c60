// Package pubsub publishes circular notifications to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

// Notifier wraps a Pub/Sub topic.
type Notifier struct {
	topic  *pubsub.Topic
	logger *zap.Logger
}

// New creates a Notifier for the provided topic.
func New(topic *pubsub.Topic, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{topic: topic, logger: logger}
}

// Notify marshals the notification to JSON and waits for the publish to be acknowledged.
func (n *Notifier) Notify(ctx context.Context, note circular.Notification) error {
	if n.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"circular_number": note.Circular.CircularNumber,
			"run_id":          note.RunID,
			"kind":            string(note.Kind),
		},
	}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	id, err := n.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	n.logger.Info("notification published", zap.String("message_id", id), zap.String("topic", n.topic.ID()))
	return nil
}

// Stop flushes pending publishes and releases the topic's goroutines.
func (n *Notifier) Stop() {
	if n.topic != nil {
		n.topic.Stop()
	}
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
