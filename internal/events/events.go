// Package events publishes post lifecycle notifications to a message
// broker. Publishing is best effort: callers log failures and carry on,
// a dropped notification never fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inkwell-press/apiserver/config"
)

// Channel is the broker channel all post events are published to.
const Channel = "post-events"

// Event names carried in PostEvent.Event.
const (
	PostPublished = "post.published"
	PostDeleted   = "post.deleted"
)

// PostEvent is the JSON payload describing a post lifecycle change.
type PostEvent struct {
	Event      string    `json:"event"`
	PostID     int       `json:"post_id"`
	AuthorID   int       `json:"author_id"`
	Title      string    `json:"title"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Backend defines the broker-agnostic publish operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher wraps a backend with a stable, event-typed API.
type Publisher struct {
	backend Backend
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// NewFromConfig picks and constructs the configured backend. A "none"
// backend publishes into the void.
func NewFromConfig(ctx context.Context, cfg config.BrokerConfig) (*Publisher, error) {
	switch cfg.Backend {
	case "rabbitmq":
		backend, err := NewRabbitMQBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewPublisher(backend), nil
	case "pubsub":
		backend, err := NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewPublisher(backend), nil
	case "", "none":
		return NewPublisher(NopBackend{}), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Backend)
	}
}

// PublishPostEvent sends a post event to the post-events channel.
func (p *Publisher) PublishPostEvent(ctx context.Context, event PostEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.backend.Publish(ctx, Channel, data, map[string]string{"event": event.Event})
	return err
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}

// NopBackend discards every publish. It stands in when no broker is
// configured.
type NopBackend struct{}

func (NopBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return "", nil
}

func (NopBackend) Close() error { return nil }
