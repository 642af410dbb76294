// Package notify hands user notifications to the delivery pipeline. Delivery
// itself (push, email, websocket) happens downstream of Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/richardliu001/ledger-service/internal/repo"
)

type Type string

const (
	TypeTransaction Type = "transaction"
	TypeSecurity    Type = "security"
	TypeAccount     Type = "account"
)

const EventType = "notification"

type Notification struct {
	UserID  uuid.UUID      `json:"user_id"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Type    Type           `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notifier delivers a notification. Callers treat it as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// OutboxNotifier stores notifications in the outbox table; the poller relays
// them to Kafka.
type OutboxNotifier struct {
	repo repo.RepositoryInterface
}

func NewOutboxNotifier(r repo.RepositoryInterface) *OutboxNotifier {
	return &OutboxNotifier{repo: r}
}

func (o *OutboxNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	aggregateID := n.UserID.String()
	if ref, ok := n.Payload["reference"].(string); ok && ref != "" {
		aggregateID = ref
	}
	evt := &model.OutboxEvent{
		Aggregate:   "Notification",
		AggregateID: aggregateID,
		EventType:   EventType,
		Payload:     string(payload),
	}
	return o.repo.CreateOutboxEvent(ctx, o.repo.DB(ctx), evt)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
