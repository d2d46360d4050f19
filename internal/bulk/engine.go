package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/leads"
)

// Field is one column assignment in a Patch. Unset fields are left untouched;
// a set field with a nil pointer value clears the column.
type Field[T any] struct {
	Set   bool
	Value T
}

func Assign[T any](value T) Field[T] {
	return Field[T]{Set: true, Value: value}
}

// Patch lists the lead columns a bulk action writes.
type Patch struct {
	OwnerID        Field[*uuid.UUID]
	Stage          Field[leads.Stage]
	NextFollowupAt Field[*time.Time]
	FollowupWindow Field[*leads.FollowupWindow]
	Contact        Field[*string]
	SourceType     Field[leads.SourceType]
	SourceDetail   Field[*string]
	IsArchived     Field[bool]
}

type Store interface {
	// UpdateLeads applies patch to the given leads of the table in one
	// statement and returns the number of rows matched.
	UpdateLeads(ctx context.Context, tableID uuid.UUID, ids []uuid.UUID, patch Patch) (int64, error)
	// LinkServices inserts every lead/service pair, ignoring existing ones.
	LinkServices(ctx context.Context, leadIDs, serviceIDs []uuid.UUID) error
	UnlinkServices(ctx context.Context, leadIDs, serviceIDs []uuid.UUID) error
}

type AuditRecorder interface {
	LogBatch(ctx context.Context, entries []audit.Entry) error
}

type Engine struct {
	store  Store
	audit  AuditRecorder
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, recorder AuditRecorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, audit: recorder, logger: logger, now: time.Now}
}

// Target identifies who applies an action and to which table.
type Target struct {
	TableID   uuid.UUID
	OrgID     uuid.UUID
	ActorID   uuid.UUID
	RequestID string
}

type Result struct {
	Action        Action `json:"action"`
	AffectedCount int64  `json:"affected_count"`
}

// Apply performs exactly one mutation for req and then writes one audit event
// per lead. The caller must have verified that every lead and service id
// belongs to the target table.
func (e *Engine) Apply(ctx context.Context, target Target, req Request) (Result, error) {
	log := e.logger.With("table_id", target.TableID.String(), "action", string(req.Action), "request_id", target.RequestID)
	occurredAt := e.now().UTC()

	affected, err := e.mutate(ctx, target.TableID, req)
	if err != nil {
		log.Error("bulk_update_failed", "leads", len(req.LeadIDs), "error", err.Error())
		return Result{Action: req.Action}, apperr.Storage("BULK_UPDATE_FAILED", "Failed to apply bulk action", err)
	}

	if err := e.audit.LogBatch(ctx, bulkEntries(target, req, occurredAt)); err != nil {
		log.Error("bulk_audit_failed", "affected", affected, "error", err.Error())
		return Result{Action: req.Action}, apperr.Storage("AUDIT_FAILED", "Failed to write audit events", err).
			WithDetail("affected_count", affected)
	}

	log.Info("bulk_action_applied", "affected", affected)
	return Result{Action: req.Action, AffectedCount: affected}, nil
}

func (e *Engine) mutate(ctx context.Context, tableID uuid.UUID, req Request) (int64, error) {
	switch p := req.Payload.(type) {
	case ServicesPayload:
		var err error
		switch req.Action {
		case ActionAddServices:
			err = e.store.LinkServices(ctx, req.LeadIDs, p.ServiceIDs)
		case ActionRemoveServices:
			err = e.store.UnlinkServices(ctx, req.LeadIDs, p.ServiceIDs)
		default:
			return 0, fmt.Errorf("services payload for action %s", req.Action)
		}
		if err != nil {
			return 0, err
		}
		return int64(len(req.LeadIDs)), nil
	}

	patch, err := patchFor(req)
	if err != nil {
		return 0, err
	}
	return e.store.UpdateLeads(ctx, tableID, req.LeadIDs, patch)
}

func patchFor(req Request) (Patch, error) {
	var patch Patch
	switch p := req.Payload.(type) {
	case AssignOwnerPayload:
		patch.OwnerID = Assign(p.OwnerID)
	case ChangeStagePayload:
		patch.Stage = Assign(p.Stage)
		patch.NextFollowupAt = Assign(dateTime(p.NextFollowupAt))
		patch.Contact = Assign(p.Contact)
	case SetSourcePayload:
		patch.SourceType = Assign(p.SourceType)
		patch.SourceDetail = Assign(p.SourceDetail)
	case SetFollowupPayload:
		patch.NextFollowupAt = Assign(dateTime(p.NextFollowupAt))
		patch.FollowupWindow = Assign(p.FollowupWindow)
	case ArchivePayload:
		patch.IsArchived = Assign(true)
	default:
		return Patch{}, fmt.Errorf("unexpected payload %T for action %s", req.Payload, req.Action)
	}
	return patch, nil
}

func dateTime(d *openapi_types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func bulkEntries(target Target, req Request, occurredAt time.Time) []audit.Entry {
	actorID := target.ActorID
	tableID := target.TableID
	metadata := map[string]any{
		"action":      string(req.Action),
		"payload":     req.Payload,
		"occurred_at": occurredAt.Format(time.RFC3339Nano),
	}
	entries := make([]audit.Entry, 0, len(req.LeadIDs))
	for _, id := range req.LeadIDs {
		leadID := id
		entries = append(entries, audit.Entry{
			OrgID:      target.OrgID,
			ActorID:    &actorID,
			TableID:    &tableID,
			Action:     "bulk_" + string(req.Action),
			EntityType: "lead",
			EntityID:   &leadID,
			RequestID:  target.RequestID,
			Metadata:   metadata,
		})
	}
	return entries
}
