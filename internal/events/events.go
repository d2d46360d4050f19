package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is one published batch of audit events, usually all produced by a
// single import or bulk action.
type Message struct {
	ID         uuid.UUID    `json:"id"`
	Type       string       `json:"type"`
	OrgID      uuid.UUID    `json:"org_id"`
	TableID    *uuid.UUID   `json:"table_id,omitempty"`
	ActorID    *uuid.UUID   `json:"actor_id,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
	Events     []AuditEvent `json:"events"`
}

type AuditEvent struct {
	ID         uuid.UUID       `json:"id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   *uuid.UUID      `json:"entity_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Noop discards messages. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error { return nil }
