package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/httpx"
	"github.com/leadboard/apps/api/internal/leads"
	"github.com/leadboard/apps/api/internal/middleware"
	"github.com/leadboard/apps/api/internal/store"
)

const actionCreated = "created"

type createLeadRequest struct {
	BusinessName   string              `json:"business_name"`
	Stage          *string             `json:"stage,omitempty"`
	Contact        *string             `json:"contact,omitempty"`
	WebsiteURL     *string             `json:"website_url,omitempty"`
	Notes          *string             `json:"notes,omitempty"`
	SourceType     *string             `json:"source_type,omitempty"`
	SourceDetail   *string             `json:"source_detail,omitempty"`
	OwnerID        *uuid.UUID          `json:"owner_id,omitempty"`
	NextFollowupAt *openapi_types.Date `json:"next_followup_at,omitempty"`
	DoNotContact   bool                `json:"do_not_contact,omitempty"`
	DNCReason      *string             `json:"dnc_reason,omitempty"`
	LostReason     *string             `json:"lost_reason,omitempty"`
}

type leadResponse struct {
	ID             uuid.UUID             `json:"id"`
	TableID        uuid.UUID             `json:"table_id"`
	BusinessName   string                `json:"business_name"`
	Stage          leads.Stage           `json:"stage"`
	Contact        *string               `json:"contact"`
	WebsiteURL     *string               `json:"website_url"`
	Domain         *string               `json:"domain"`
	Notes          *string               `json:"notes"`
	SourceType     leads.SourceType      `json:"source_type"`
	SourceDetail   *string               `json:"source_detail"`
	OwnerID        *uuid.UUID            `json:"owner_id"`
	NextFollowupAt *openapi_types.Date   `json:"next_followup_at"`
	FollowupWindow *leads.FollowupWindow `json:"followup_window"`
	DoNotContact   bool                  `json:"do_not_contact"`
	DNCReason      *string               `json:"dnc_reason"`
	LostReason     *string               `json:"lost_reason"`
	IsArchived     bool                  `json:"is_archived"`
	ImportBatchID  *uuid.UUID            `json:"import_batch_id"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func (s *Server) PostTableLeads(w http.ResponseWriter, r *http.Request) {
	actor, table, ok := s.requireTable(w, r)
	if !ok {
		return
	}

	var req createLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return
	}

	candidate, err := candidateFromRequest(req, table.TableDefaults)
	if err != nil {
		httpx.WriteAppError(w, r, err)
		return
	}

	userID := actor.UserID
	lead, err := s.Store.CreateLead(r.Context(), table, store.NewLead{Candidate: candidate, CreatedBy: &userID})
	if err != nil {
		httpx.WriteAppError(w, r, apperr.Storage("INSERT_FAILED", "Failed to create lead", err))
		return
	}

	leadID := lead.ID
	tableID := table.ID
	if err := s.Audit.Log(r.Context(), audit.Entry{
		OrgID:      table.OrgID,
		ActorID:    &userID,
		TableID:    &tableID,
		Action:     actionCreated,
		EntityType: "lead",
		EntityID:   &leadID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata:   map[string]any{"source": "api"},
	}); err != nil {
		s.Logger.Warn("lead_audit_failed", "lead_id", leadID.String(), "error", err.Error())
	}

	httpx.WriteJSON(w, http.StatusCreated, mapLead(lead))
}

// candidateFromRequest applies the same canonicalization and validity rules
// as an imported row. Unlike import, unknown enum labels are rejected.
func candidateFromRequest(req createLeadRequest, defaults leads.TableDefaults) (leads.CandidateLead, error) {
	name := strings.TrimSpace(req.BusinessName)
	if name == "" {
		return leads.CandidateLead{}, apperr.Validation("INVALID_LEAD", "business_name is required")
	}

	candidate := leads.CandidateLead{
		BusinessName: name,
		Stage:        defaults.DefaultStage,
		Contact:      trimmed(req.Contact),
		Notes:        trimmed(req.Notes),
		SourceType:   defaults.DefaultSourceType,
		SourceDetail: defaults.DefaultSourceDetail,
		OwnerID:      req.OwnerID,
		DoNotContact: req.DoNotContact,
		DNCReason:    trimmed(req.DNCReason),
		LostReason:   trimmed(req.LostReason),
	}

	if req.Stage != nil {
		stage, ok := leads.ParseStage(strings.TrimSpace(*req.Stage))
		if !ok {
			return leads.CandidateLead{}, apperr.Validation("INVALID_STAGE", "stage is not a known stage").
				WithDetail("stage", *req.Stage)
		}
		candidate.Stage = stage
	}
	if req.SourceType != nil {
		source, ok := leads.ParseSourceType(strings.TrimSpace(*req.SourceType))
		if !ok {
			return leads.CandidateLead{}, apperr.Validation("INVALID_SOURCE_TYPE", "source_type is not a known source").
				WithDetail("source_type", *req.SourceType)
		}
		candidate.SourceType = source
		candidate.SourceDetail = trimmed(req.SourceDetail)
	} else if detail := trimmed(req.SourceDetail); detail != nil {
		candidate.SourceDetail = detail
	}

	if website := trimmed(req.WebsiteURL); website != nil {
		candidate.WebsiteURL = leads.NormalizeWebsiteURL(*website)
		candidate.Domain = leads.ExtractDomain(*website)
	}
	if req.NextFollowupAt != nil {
		date := req.NextFollowupAt.Format(time.DateOnly)
		candidate.NextFollowupAt = &date
	}

	if !candidate.Valid() {
		return leads.CandidateLead{}, apperr.Validation("CONTACTED_REQUIRES_FOLLOWUP_AND_CONTACT",
			"Contacted leads require next_followup_at and contact")
	}
	return candidate, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func mapLead(l leads.Lead) leadResponse {
	var followup *openapi_types.Date
	if l.NextFollowupAt != nil {
		followup = &openapi_types.Date{Time: *l.NextFollowupAt}
	}
	return leadResponse{
		ID:             l.ID,
		TableID:        l.TableID,
		BusinessName:   l.BusinessName,
		Stage:          l.Stage,
		Contact:        l.Contact,
		WebsiteURL:     l.WebsiteURL,
		Domain:         l.Domain,
		Notes:          l.Notes,
		SourceType:     l.SourceType,
		SourceDetail:   l.SourceDetail,
		OwnerID:        l.OwnerID,
		NextFollowupAt: followup,
		FollowupWindow: l.FollowupWindow,
		DoNotContact:   l.DoNotContact,
		DNCReason:      l.DNCReason,
		LostReason:     l.LostReason,
		IsArchived:     l.IsArchived,
		ImportBatchID:  l.ImportBatchID,
		CreatedAt:      l.CreatedAt.UTC(),
		UpdatedAt:      l.UpdatedAt.UTC(),
	}
}
