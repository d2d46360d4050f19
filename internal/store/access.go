package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/leads"
)

type SessionPrincipal struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	OrgID     uuid.UUID
	Email     string
	FullName  string
	OrgSlug   string
	OrgName   string
	CSRFToken string
	ExpiresAt time.Time
}

func (s *Store) GetSessionPrincipalByTokenHash(ctx context.Context, tokenHash string) (SessionPrincipal, error) {
	var p SessionPrincipal
	err := s.db.QueryRow(ctx, `
		SELECT s.id, u.id, o.id, u.email, u.full_name, o.slug, o.name, s.csrf_token, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id AND u.is_active
		JOIN orgs o ON o.id = s.org_id
		WHERE s.token_hash = $1 AND s.revoked_at IS NULL AND s.expires_at > now()
	`, tokenHash).Scan(&p.SessionID, &p.UserID, &p.OrgID, &p.Email, &p.FullName, &p.OrgSlug, &p.OrgName, &p.CSRFToken, &p.ExpiresAt)
	if err != nil {
		return SessionPrincipal{}, notFound(err)
	}
	return p, nil
}

func (s *Store) TouchSession(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET last_seen_at = now() WHERE id = $1`, sessionID)
	return err
}

// CanAccessTable is the permission oracle. Org admins can read and edit every
// table of their org; members need a table membership, with can_edit for writes.
func (s *Store) CanAccessTable(ctx context.Context, userID, tableID uuid.UUID, edit bool) (bool, error) {
	var allowed bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM lead_tables t
			JOIN org_members m ON m.org_id = t.org_id AND m.user_id = $1
			WHERE t.id = $2
			  AND (
				m.role = 'admin'
				OR EXISTS (
					SELECT 1 FROM table_members tm
					WHERE tm.table_id = t.id AND tm.user_id = $1 AND (NOT $3 OR tm.can_edit)
				)
			  )
		)
	`, userID, tableID, edit).Scan(&allowed)
	if err != nil {
		return false, fmt.Errorf("check table access: %w", err)
	}
	return allowed, nil
}

func (s *Store) GetTable(ctx context.Context, orgID, tableID uuid.UUID) (leads.Table, error) {
	var (
		t             leads.Table
		stage, source string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, org_id, name, default_stage, default_source_type, default_source_detail
		FROM lead_tables
		WHERE id = $1 AND org_id = $2
	`, tableID, orgID).Scan(&t.ID, &t.OrgID, &t.Name, &stage, &source, &t.DefaultSourceDetail)
	if err != nil {
		return leads.Table{}, notFound(err)
	}
	t.DefaultStage = leads.Stage(stage)
	t.DefaultSourceType = leads.SourceType(source)
	return t, nil
}
