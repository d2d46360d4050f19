package bulk

import (
	"context"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/apperr"
)

// ScopeChecker reports ids that do not belong to a table.
type ScopeChecker interface {
	MissingLeads(ctx context.Context, tableID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	MissingServices(ctx context.Context, tableID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
}

// VerifyScope fails when any lead, or any service of a services action, lives
// outside the table.
func VerifyScope(ctx context.Context, checker ScopeChecker, tableID uuid.UUID, req Request) error {
	missing, err := checker.MissingLeads(ctx, tableID, req.LeadIDs)
	if err != nil {
		return apperr.Storage("LEAD_LOOKUP_FAILED", "Failed to verify leads", err)
	}
	if len(missing) > 0 {
		return apperr.Scope("LEADS_NOT_IN_TABLE", "Some leads do not belong to this table").
			WithDetail("lead_ids", missing)
	}

	services, ok := req.Payload.(ServicesPayload)
	if !ok {
		return nil
	}
	missing, err = checker.MissingServices(ctx, tableID, services.ServiceIDs)
	if err != nil {
		return apperr.Storage("SERVICE_LOOKUP_FAILED", "Failed to verify services", err)
	}
	if len(missing) > 0 {
		return apperr.Scope("SERVICES_NOT_IN_TABLE", "Some services do not belong to this table").
			WithDetail("service_ids", missing)
	}
	return nil
}
