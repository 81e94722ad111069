package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"inkwell/internal/content/models"
	"inkwell/internal/event"
)

// Producer is the slice of the kafka client this package uses. *kgo.Client
// satisfies it.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Envelope is the wire form of a content notification.
type Envelope struct {
	EventID    uuid.UUID      `json:"event_id"`
	Kind       string         `json:"kind"`
	OccurredAt time.Time      `json:"occurred_at"`
	Principal  string         `json:"principal"`
	Source     string         `json:"source"`
	ContentID  uuid.UUID      `json:"content_id"`
	Slug       string         `json:"slug"`
	Title      string         `json:"title"`
	Status     string         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	SoftDelete bool           `json:"soft_delete,omitempty"`
	PublishAt  *time.Time     `json:"publish_at,omitempty"`
	Previous   map[string]any `json:"previous,omitempty"`
}

// Notifier publishes one kafka record per content event so external systems
// can react. It runs at the default priority, after the in-process
// subscribers, and keys records by content ID so each item's notifications
// stay ordered within a partition.
type Notifier struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

func NewNotifier(producer Producer, topic string, logger *slog.Logger) (*Notifier, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{producer: producer, topic: topic, logger: logger}, nil
}

func (n *Notifier) Name() string { return "kafka-notifier" }

func (n *Notifier) ShouldObserve(payloadType string) bool {
	return payloadType == "*models.Content"
}

func (n *Notifier) OnCreated(ctx context.Context, e *event.Event) error {
	return n.publish(ctx, e)
}

func (n *Notifier) OnUpdated(ctx context.Context, e *event.Event) error {
	return n.publish(ctx, e)
}

func (n *Notifier) OnPublished(ctx context.Context, e *event.Event) error {
	return n.publish(ctx, e)
}

func (n *Notifier) OnDeleted(ctx context.Context, e *event.Event) error {
	return n.publish(ctx, e)
}

func (n *Notifier) publish(ctx context.Context, e *event.Event) error {
	c, ok := e.Payload().(*models.Content)
	if !ok {
		return fmt.Errorf("unexpected payload type %s", e.PayloadType())
	}

	envelope := Envelope{
		EventID:    e.ID(),
		Kind:       e.Kind().String(),
		OccurredAt: e.OccurredAt(),
		Principal:  e.Principal(),
		Source:     e.Source(),
		ContentID:  c.ID,
		Slug:       c.Slug,
		Title:      c.Title,
		Status:     string(c.Status),
		Reason:     e.Reason(),
		SoftDelete: e.SoftDelete(),
		Previous:   e.Previous(),
	}
	if at, ok := e.PublishAt(); ok {
		envelope.PublishAt = &at
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(c.ID.String()),
		Value: value,
	}
	if err := n.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}

	n.logger.DebugContext(ctx, "notification published",
		"topic", n.topic,
		"kind", envelope.Kind,
		"content_id", c.ID,
	)
	return nil
}
