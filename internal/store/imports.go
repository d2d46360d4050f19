package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadboard/apps/api/internal/leads"
)

func (s *Store) CreateImportBatch(ctx context.Context, batch leads.ImportBatch) (leads.ImportBatch, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO import_batches (table_id, org_id, created_by, filename, source_default_type, source_default_detail, row_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, batch.TableID, batch.OrgID, batch.CreatedBy, batch.Filename, string(batch.SourceDefaultType),
		batch.SourceDefaultDetail, batch.RowCount).Scan(&batch.ID, &batch.CreatedAt)
	if err != nil {
		return leads.ImportBatch{}, fmt.Errorf("create import batch: %w", err)
	}
	return batch, nil
}

func (s *Store) ListImportBatches(ctx context.Context, tableID uuid.UUID, limit int) ([]leads.ImportBatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, table_id, org_id, created_by, filename, source_default_type, source_default_detail, row_count, created_at
		FROM import_batches
		WHERE table_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, tableID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}
	batches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (leads.ImportBatch, error) {
		var (
			b      leads.ImportBatch
			source string
		)
		err := row.Scan(&b.ID, &b.TableID, &b.OrgID, &b.CreatedBy, &b.Filename, &source, &b.SourceDefaultDetail, &b.RowCount, &b.CreatedAt)
		b.SourceDefaultType = leads.SourceType(source)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("list import batches: %w", err)
	}
	return batches, nil
}
