package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/leadboard/apps/api/internal/audit"
)

var auditColumns = []string{
	"id", "org_id", "table_id", "actor_id", "action", "entity_type", "entity_id", "request_id", "metadata", "created_at",
}

// InsertAuditEvents bulk-loads audit records with COPY.
func (s *Store) InsertAuditEvents(ctx context.Context, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	_, err := s.db.CopyFrom(ctx, pgx.Identifier{"audit_events"}, auditColumns,
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			return []any{r.ID, r.OrgID, r.TableID, r.ActorID, r.Action, r.EntityType, r.EntityID, r.RequestID, string(r.Metadata), r.CreatedAt}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy audit events: %w", err)
	}
	return nil
}
