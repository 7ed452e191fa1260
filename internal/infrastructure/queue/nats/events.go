package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

const (
	documentSubjectPrefix = "events.documents."
	promptSubjectPrefix   = "events.prompts."
)

// EventBus broadcasts pipeline progress over per-document subjects. Nothing
// persists: a subscriber only sees events published while it listens, which
// is the contract live progress views want.
type EventBus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewEventBus(conn *nats.Conn, logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{conn: conn, logger: logger}
}

type progressMessage struct {
	Type string `json:"type"`
	domain.DocumentProgress
}

func (b *EventBus) PublishDocumentProgress(_ context.Context, ev domain.DocumentProgress) error {
	return b.publish(documentSubjectPrefix+ev.DocumentID, progressMessage{
		Type:             domain.EventDocumentProgress,
		DocumentProgress: ev,
	})
}

func (b *EventBus) PublishGenerationEvent(_ context.Context, ev domain.GenerationEvent) error {
	subject := promptSubjectPrefix + ev.Ref.PromptID
	if ev.Ref.DocumentID != "" {
		subject = documentSubjectPrefix + ev.Ref.DocumentID
	}
	return b.publish(subject, ev)
}

func (b *EventBus) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// SubscribeDocument delivers every event for one document to fn until the
// returned cancel function runs. fn receives the raw JSON payload.
func (b *EventBus) SubscribeDocument(documentID string, fn func(data []byte)) (func(), error) {
	sub, err := b.conn.Subscribe(documentSubjectPrefix+documentID, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe document events: %w", err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Warn("event_unsubscribe_failed",
				slog.String("document_id", documentID),
				slog.String("error", err.Error()),
			)
		}
	}, nil
}
