package importer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/leads"
)

const ActionImported = "imported"

// Store is the persistence the import pipeline needs.
type Store interface {
	// ExistingKeys returns which of values are already used by leads of the
	// table in the column identified by key.
	ExistingKeys(ctx context.Context, tableID uuid.UUID, key leads.DuplicateReason, values []string) (map[string]struct{}, error)
	CreateImportBatch(ctx context.Context, batch leads.ImportBatch) (leads.ImportBatch, error)
	// InsertLeads stores the candidates and returns their ids in input order.
	InsertLeads(ctx context.Context, table leads.Table, batchID uuid.UUID, candidates []leads.CandidateLead) ([]uuid.UUID, error)
}

type AuditRecorder interface {
	LogBatch(ctx context.Context, entries []audit.Entry) error
}

type Importer struct {
	store  Store
	audit  AuditRecorder
	logger *slog.Logger
}

func New(store Store, recorder AuditRecorder, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, audit: recorder, logger: logger}
}

type Request struct {
	Table     leads.Table
	ActorID   uuid.UUID
	RequestID string
	Filename  string
	Text      string
	Config    Config
	// MaxRows rejects files with more body rows. Zero disables the check.
	MaxRows int
}

type Result struct {
	ImportedCount       int                        `json:"imported_count"`
	DuplicateCandidates []leads.DuplicateCandidate `json:"duplicate_candidates"`
	BatchID             *uuid.UUID                 `json:"batch_id"`
	InvalidRows         int                        `json:"invalid_rows"`
}

func emptyResult() Result {
	return Result{DuplicateCandidates: []leads.DuplicateCandidate{}}
}

// Import runs one CSV through tokenizing, normalization, duplicate detection
// and insertion. Storage failures abort the call. When the audit write fails
// after leads were inserted, the populated Result is returned together with a
// KindPartial error: the leads stay persisted.
func (im *Importer) Import(ctx context.Context, req Request) (Result, error) {
	result := emptyResult()
	log := im.logger.With("table_id", req.Table.ID.String(), "request_id", req.RequestID)

	rows := Tokenize(req.Text)
	if len(rows) == 0 {
		return result, nil
	}
	if req.MaxRows > 0 && len(rows) > req.MaxRows {
		return result, apperr.Validation("ROW_LIMIT_EXCEEDED", "CSV row limit exceeded").
			WithDetail("max_rows", req.MaxRows).
			WithDetail("rows", len(rows))
	}

	defaults := req.Config.Resolve(req.Table.TableDefaults)
	candidates := make([]Candidate, 0, len(rows))
	for i, row := range rows {
		lead, ok := NormalizeRow(row, req.Config.Mapping, defaults)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{RowIndex: i + 1, Lead: lead})
	}
	if len(candidates) == 0 {
		log.Info("import_no_candidates", "rows", len(rows))
		return result, nil
	}

	existing, err := im.lookupExisting(ctx, req.Table.ID, CollectKeys(candidates))
	if err != nil {
		return result, err
	}
	result.DuplicateCandidates = DetectDuplicates(candidates, existing)

	insertable := make([]leads.CandidateLead, 0, len(candidates))
	for _, candidate := range candidates {
		if !candidate.Lead.Valid() {
			result.InvalidRows++
			continue
		}
		insertable = append(insertable, candidate.Lead)
	}

	batch, err := im.store.CreateImportBatch(ctx, leads.ImportBatch{
		TableID:             req.Table.ID,
		OrgID:               req.Table.OrgID,
		CreatedBy:           req.ActorID,
		Filename:            req.Filename,
		SourceDefaultType:   defaults.DefaultSourceType,
		SourceDefaultDetail: defaults.DefaultSourceDetail,
		RowCount:            len(rows),
	})
	if err != nil {
		return result, apperr.Storage("BATCH_CREATE_FAILED", "Failed to create import batch", err)
	}
	batchID := batch.ID
	result.BatchID = &batchID

	if len(insertable) > 0 {
		ids, err := im.store.InsertLeads(ctx, req.Table, batchID, insertable)
		if err != nil {
			return result, apperr.Storage("INSERT_FAILED", "Failed to insert leads", err).
				WithDetail("batch_id", batchID.String())
		}
		result.ImportedCount = len(ids)

		if err := im.audit.LogBatch(ctx, importedEntries(req, batchID, ids)); err != nil {
			log.Error("import_audit_failed", "batch_id", batchID.String(), "imported", len(ids), "error", err.Error())
			return result, apperr.Partial("AUDIT_FAILED_AFTER_INSERT", "Leads were imported but audit events could not be written", err).
				WithDetail("batch_id", batchID.String()).
				WithDetail("imported_count", len(ids))
		}
	}

	log.Info("import_completed",
		"batch_id", batchID.String(),
		"rows", len(rows),
		"imported", result.ImportedCount,
		"invalid", result.InvalidRows,
		"duplicates", len(result.DuplicateCandidates),
	)
	return result, nil
}

func (im *Importer) lookupExisting(ctx context.Context, tableID uuid.UUID, keys LookupKeys) (ExistingIndex, error) {
	var index ExistingIndex
	lookups := []struct {
		reason leads.DuplicateReason
		values []string
		dest   *map[string]struct{}
	}{
		{leads.ReasonDomain, keys.Domains, &index.Domains},
		{leads.ReasonContact, keys.Contacts, &index.Contacts},
		{leads.ReasonWebsiteURL, keys.WebsiteURLs, &index.WebsiteURLs},
	}
	for _, lookup := range lookups {
		if len(lookup.values) == 0 {
			continue
		}
		found, err := im.store.ExistingKeys(ctx, tableID, lookup.reason, lookup.values)
		if err != nil {
			return ExistingIndex{}, apperr.Storage("LOOKUP_FAILED", "Failed to look up existing leads", err).
				WithDetail("key", string(lookup.reason))
		}
		*lookup.dest = found
	}
	return index, nil
}

func importedEntries(req Request, batchID uuid.UUID, ids []uuid.UUID) []audit.Entry {
	actorID := req.ActorID
	tableID := req.Table.ID
	entries := make([]audit.Entry, 0, len(ids))
	for _, id := range ids {
		leadID := id
		entries = append(entries, audit.Entry{
			OrgID:      req.Table.OrgID,
			ActorID:    &actorID,
			TableID:    &tableID,
			Action:     ActionImported,
			EntityType: "lead",
			EntityID:   &leadID,
			RequestID:  req.RequestID,
			Metadata:   map[string]any{"batch_id": batchID.String()},
		})
	}
	return entries
}
