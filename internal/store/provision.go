package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadboard/apps/api/internal/leads"
)

// Provisioning writes used by cmd/seed and the integration tests. The API
// itself never creates orgs, users or tables.

func (s *Store) CreateOrg(ctx context.Context, slug, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO orgs (slug, name) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, slug, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create org: %w", err)
	}
	return id, nil
}

func (s *Store) CreateUser(ctx context.Context, email, fullName, passwordHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash) VALUES ($1, $2, $3)
		ON CONFLICT ((lower(email))) DO UPDATE SET full_name = EXCLUDED.full_name, password_hash = EXCLUDED.password_hash
		RETURNING id
	`, email, fullName, passwordHash).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *Store) AddOrgMember(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO org_members (org_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (org_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, orgID, userID, role)
	if err != nil {
		return fmt.Errorf("add org member: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, orgID, userID uuid.UUID, tokenHash, csrfToken string, expiresAt time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO sessions (org_id, user_id, token_hash, csrf_token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, orgID, userID, tokenHash, csrfToken, expiresAt).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *Store) CreateTable(ctx context.Context, orgID uuid.UUID, name string, defaults leads.TableDefaults) (leads.Table, error) {
	t := leads.Table{OrgID: orgID, Name: name, TableDefaults: defaults}
	err := s.db.QueryRow(ctx, `
		INSERT INTO lead_tables (org_id, name, default_stage, default_source_type, default_source_detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, orgID, name, string(defaults.DefaultStage), string(defaults.DefaultSourceType), defaults.DefaultSourceDetail).Scan(&t.ID)
	if err != nil {
		return leads.Table{}, fmt.Errorf("create table: %w", err)
	}
	return t, nil
}

func (s *Store) AddTableMember(ctx context.Context, tableID, userID uuid.UUID, canEdit bool) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO table_members (table_id, user_id, can_edit) VALUES ($1, $2, $3)
		ON CONFLICT (table_id, user_id) DO UPDATE SET can_edit = EXCLUDED.can_edit
	`, tableID, userID, canEdit)
	if err != nil {
		return fmt.Errorf("add table member: %w", err)
	}
	return nil
}

func (s *Store) CreateService(ctx context.Context, tableID uuid.UUID, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO services (table_id, name) VALUES ($1, $2)
		ON CONFLICT (table_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, tableID, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create service: %w", err)
	}
	return id, nil
}

// ServiceIDsForLead lists the services linked to a lead.
func (s *Store) ServiceIDsForLead(ctx context.Context, leadID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT service_id FROM lead_services WHERE lead_id = $1 ORDER BY service_id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list lead services: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list lead services: %w", err)
	}
	return ids, nil
}
