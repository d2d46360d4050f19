package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadboard/apps/api/internal/bulk"
	"github.com/leadboard/apps/api/internal/leads"
)

const leadColumns = `id, table_id, org_id, business_name, stage, contact, website_url, domain, notes,
	source_type, source_detail, owner_id, next_followup_at, followup_window, do_not_contact,
	dnc_reason, lost_reason, is_archived, import_batch_id, created_at, updated_at`

var duplicateKeyColumns = map[leads.DuplicateReason]string{
	leads.ReasonDomain:     "domain",
	leads.ReasonContact:    "contact",
	leads.ReasonWebsiteURL: "website_url",
}

func (s *Store) ExistingKeys(ctx context.Context, tableID uuid.UUID, key leads.DuplicateReason, values []string) (map[string]struct{}, error) {
	column, ok := duplicateKeyColumns[key]
	if !ok {
		return nil, fmt.Errorf("unknown duplicate key %q", key)
	}

	rows, err := s.db.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT %[1]s FROM leads WHERE table_id = $1 AND %[1]s = ANY($2)`, column),
		tableID, values)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", column, err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", column, err)
	}

	set := make(map[string]struct{}, len(found))
	for _, v := range found {
		set[v] = struct{}{}
	}
	return set, nil
}

// NewLead is a lead about to be inserted by any creation path.
type NewLead struct {
	Candidate     leads.CandidateLead
	ImportBatchID *uuid.UUID
	CreatedBy     *uuid.UUID
}

// InsertLeads inserts the candidates of one import in a single transaction.
func (s *Store) InsertLeads(ctx context.Context, table leads.Table, batchID uuid.UUID, candidates []leads.CandidateLead) ([]uuid.UUID, error) {
	batchRef := batchID
	items := make([]NewLead, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, NewLead{Candidate: c, ImportBatchID: &batchRef})
	}

	var ids []uuid.UUID
	err := s.WithTx(ctx, func(tx *Store) error {
		var err error
		ids, err = tx.insertLeads(ctx, table, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Store) CreateLead(ctx context.Context, table leads.Table, item NewLead) (leads.Lead, error) {
	ids, err := s.insertLeads(ctx, table, []NewLead{item})
	if err != nil {
		return leads.Lead{}, err
	}
	return s.GetLead(ctx, table.ID, ids[0])
}

func (s *Store) insertLeads(ctx context.Context, table leads.Table, items []NewLead) ([]uuid.UUID, error) {
	batch := &pgx.Batch{}
	for _, item := range items {
		c := item.Candidate
		var followup *time.Time
		if c.NextFollowupAt != nil {
			if parsed, ok := leads.ParseFollowupDate(*c.NextFollowupAt); ok {
				followup = &parsed
			}
		}
		batch.Queue(`
			INSERT INTO leads (
				table_id, org_id, business_name, stage, contact, website_url, domain, notes,
				source_type, source_detail, owner_id, next_followup_at, do_not_contact,
				dnc_reason, lost_reason, import_batch_id, created_by
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING id
		`, table.ID, table.OrgID, c.BusinessName, string(c.Stage), c.Contact, c.WebsiteURL, c.Domain, c.Notes,
			string(c.SourceType), c.SourceDetail, c.OwnerID, followup, c.DoNotContact,
			c.DNCReason, c.LostReason, item.ImportBatchID, item.CreatedBy)
	}

	results := s.db.SendBatch(ctx, batch)
	ids := make([]uuid.UUID, 0, len(items))
	for range items {
		var id uuid.UUID
		if err := results.QueryRow().Scan(&id); err != nil {
			_ = results.Close()
			return nil, fmt.Errorf("insert lead: %w", err)
		}
		ids = append(ids, id)
	}
	if err := results.Close(); err != nil {
		return nil, fmt.Errorf("insert leads: %w", err)
	}
	return ids, nil
}

func (s *Store) GetLead(ctx context.Context, tableID, leadID uuid.UUID) (leads.Lead, error) {
	rows, err := s.db.Query(ctx, `SELECT `+leadColumns+` FROM leads WHERE table_id = $1 AND id = $2`, tableID, leadID)
	if err != nil {
		return leads.Lead{}, err
	}
	lead, err := pgx.CollectExactlyOneRow(rows, scanLead)
	if err != nil {
		return leads.Lead{}, notFound(err)
	}
	return lead, nil
}

// ListLeads returns the table's leads oldest first.
func (s *Store) ListLeads(ctx context.Context, tableID uuid.UUID, includeArchived bool) ([]leads.Lead, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE table_id = $1 AND ($2 OR NOT is_archived)
		ORDER BY created_at, id
	`, tableID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanLead)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return list, nil
}

func scanLead(row pgx.CollectableRow) (leads.Lead, error) {
	var (
		l              leads.Lead
		stage, source  string
		followupWindow *string
	)
	err := row.Scan(
		&l.ID, &l.TableID, &l.OrgID, &l.BusinessName, &stage, &l.Contact, &l.WebsiteURL, &l.Domain, &l.Notes,
		&source, &l.SourceDetail, &l.OwnerID, &l.NextFollowupAt, &followupWindow, &l.DoNotContact,
		&l.DNCReason, &l.LostReason, &l.IsArchived, &l.ImportBatchID, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return leads.Lead{}, err
	}
	l.Stage = leads.Stage(stage)
	l.SourceType = leads.SourceType(source)
	if followupWindow != nil {
		window := leads.FollowupWindow(*followupWindow)
		l.FollowupWindow = &window
	}
	return l, nil
}

// UpdateLeads applies a bulk patch in one UPDATE statement.
func (s *Store) UpdateLeads(ctx context.Context, tableID uuid.UUID, ids []uuid.UUID, patch bulk.Patch) (int64, error) {
	args := []any{tableID, ids}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.OwnerID.Set {
		set("owner_id", patch.OwnerID.Value)
	}
	if patch.Stage.Set {
		set("stage", string(patch.Stage.Value))
	}
	if patch.NextFollowupAt.Set {
		set("next_followup_at", patch.NextFollowupAt.Value)
	}
	if patch.FollowupWindow.Set {
		var window *string
		if patch.FollowupWindow.Value != nil {
			w := string(*patch.FollowupWindow.Value)
			window = &w
		}
		set("followup_window", window)
	}
	if patch.Contact.Set {
		set("contact", patch.Contact.Value)
	}
	if patch.SourceType.Set {
		set("source_type", string(patch.SourceType.Value))
	}
	if patch.SourceDetail.Set {
		set("source_detail", patch.SourceDetail.Value)
	}
	if patch.IsArchived.Set {
		set("is_archived", patch.IsArchived.Value)
	}
	if len(sets) == 0 {
		return 0, fmt.Errorf("empty lead patch")
	}
	sets = append(sets, "updated_at = now()")

	tag, err := s.db.Exec(ctx,
		`UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE table_id = $1 AND id = ANY($2)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("update leads: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) LinkServices(ctx context.Context, leadIDs, serviceIDs []uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO lead_services (lead_id, service_id)
		SELECT l.id, sv.id
		FROM unnest($1::uuid[]) AS l(id)
		CROSS JOIN unnest($2::uuid[]) AS sv(id)
		ON CONFLICT DO NOTHING
	`, leadIDs, serviceIDs)
	if err != nil {
		return fmt.Errorf("link services: %w", err)
	}
	return nil
}

func (s *Store) UnlinkServices(ctx context.Context, leadIDs, serviceIDs []uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM lead_services
		WHERE lead_id = ANY($1) AND service_id = ANY($2)
	`, leadIDs, serviceIDs)
	if err != nil {
		return fmt.Errorf("unlink services: %w", err)
	}
	return nil
}

func (s *Store) MissingLeads(ctx context.Context, tableID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return s.missingIDs(ctx, `SELECT id FROM leads WHERE table_id = $1 AND id = ANY($2)`, tableID, ids)
}

func (s *Store) MissingServices(ctx context.Context, tableID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	return s.missingIDs(ctx, `SELECT id FROM services WHERE table_id = $1 AND id = ANY($2)`, tableID, ids)
}

func (s *Store) missingIDs(ctx context.Context, query string, tableID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, query, tableID, ids)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, err
	}

	present := make(map[uuid.UUID]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
