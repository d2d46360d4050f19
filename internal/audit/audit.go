package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/events"
)

// Writer persists audit records. The store implements it.
type Writer interface {
	InsertAuditEvents(ctx context.Context, records []Record) error
}

type Logger struct {
	w         Writer
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewLogger(w Writer, publisher events.Publisher, logger *slog.Logger) *Logger {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{w: w, publisher: publisher, logger: logger, now: time.Now}
}

type Entry struct {
	OrgID      uuid.UUID
	ActorID    *uuid.UUID
	TableID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  string
	Metadata   map[string]any
}

// Record is an Entry with its metadata encoded, as stored.
type Record struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	ActorID    *uuid.UUID
	TableID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   *uuid.UUID
	RequestID  *string
	Metadata   []byte
	CreatedAt  time.Time
}

func (l *Logger) Log(ctx context.Context, entry Entry) error {
	return l.LogBatch(ctx, []Entry{entry})
}

// LogBatch writes all entries in one storage call, then publishes them as a
// single event. Publishing is best-effort; only the write can fail the call.
func (l *Logger) LogBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	createdAt := l.now().UTC()
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		metadata := []byte("{}")
		if len(entry.Metadata) > 0 {
			encoded, err := json.Marshal(entry.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			metadata = encoded
		}

		record := Record{
			ID:         uuid.New(),
			OrgID:      entry.OrgID,
			ActorID:    entry.ActorID,
			TableID:    entry.TableID,
			Action:     entry.Action,
			EntityType: entry.EntityType,
			EntityID:   entry.EntityID,
			Metadata:   metadata,
			CreatedAt:  createdAt,
		}
		if entry.RequestID != "" {
			requestID := entry.RequestID
			record.RequestID = &requestID
		}
		records = append(records, record)
	}

	if err := l.w.InsertAuditEvents(ctx, records); err != nil {
		return fmt.Errorf("insert audit events: %w", err)
	}

	if err := l.publisher.Publish(ctx, toMessage(records)); err != nil {
		l.logger.Warn("audit_publish_failed",
			"action", records[0].Action,
			"count", len(records),
			"error", err.Error(),
		)
	}
	return nil
}

func toMessage(records []Record) events.Message {
	first := records[0]
	msg := events.Message{
		ID:         uuid.New(),
		Type:       first.Action,
		OrgID:      first.OrgID,
		TableID:    first.TableID,
		ActorID:    first.ActorID,
		OccurredAt: first.CreatedAt,
		Events:     make([]events.AuditEvent, 0, len(records)),
	}
	for _, record := range records {
		msg.Events = append(msg.Events, events.AuditEvent{
			ID:         record.ID,
			Action:     record.Action,
			EntityType: record.EntityType,
			EntityID:   record.EntityID,
			Metadata:   json.RawMessage(record.Metadata),
		})
	}
	return msg
}
