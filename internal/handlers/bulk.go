package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/leadboard/apps/api/internal/bulk"
	"github.com/leadboard/apps/api/internal/httpx"
	"github.com/leadboard/apps/api/internal/middleware"
)

type bulkResponse struct {
	Success       bool        `json:"success"`
	Action        bulk.Action `json:"action"`
	AffectedCount int64       `json:"affected_count"`
}

func (s *Server) PostTableLeadsBulk(w http.ResponseWriter, r *http.Request) {
	actor, table, ok := s.requireTable(w, r)
	if !ok {
		return
	}

	var raw bulk.RawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON body", nil)
		return
	}

	req, err := bulk.ParseRequest(raw, s.Config.BulkMaxLeads)
	if err != nil {
		s.Metrics.RecordBulkAction(raw.Action, "rejected", 0)
		httpx.WriteAppError(w, r, err)
		return
	}

	if err := bulk.VerifyScope(r.Context(), s.Store, table.ID, req); err != nil {
		s.Metrics.RecordBulkAction(string(req.Action), "rejected", 0)
		httpx.WriteAppError(w, r, err)
		return
	}

	result, err := s.Bulk.Apply(r.Context(), bulk.Target{
		TableID:   table.ID,
		OrgID:     table.OrgID,
		ActorID:   actor.UserID,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}, req)
	if err != nil {
		s.Metrics.RecordBulkAction(string(req.Action), "error", 0)
		httpx.WriteAppError(w, r, err)
		return
	}

	s.Metrics.RecordBulkAction(string(result.Action), "success", result.AffectedCount)
	httpx.WriteJSON(w, http.StatusOK, bulkResponse{
		Success:       true,
		Action:        result.Action,
		AffectedCount: result.AffectedCount,
	})
}
