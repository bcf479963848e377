// Package notify turns processed domain events into best-effort push
// notifications, grouped by topic hub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Publisher sends a payload to all current subscribers of a hub.
// Fire-and-forget: no delivery guarantee is offered to callers.
type Publisher interface {
	Publish(ctx context.Context, hub, method string, payload interface{}) error
}

// NATSPublisher publishes notifications to NATS JetStream.
// Subjects follow the pattern: bullion.notify.{hub}.{method}
type NATSPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

func NewNATSPublisher(js jetstream.JetStream, log zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{js: js, log: log}
}

func (p *NATSPublisher) Publish(ctx context.Context, hub, method string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := fmt.Sprintf("bullion.notify.%s.%s", hub, method)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// EnsureNotifyStream creates the notifications stream.
func EnsureNotifyStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "BULLION_NOTIFY",
		Subjects:  []string{"bullion.notify.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create notify stream: %w", err)
	}
	return nil
}
