package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/export"
	"github.com/leadboard/apps/api/internal/httpx"
	"github.com/leadboard/apps/api/internal/leads"
	"github.com/leadboard/apps/api/internal/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) GetTableExportCSV(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, "csv", "text/csv", func(buf *bytes.Buffer, list []leads.Lead) error {
		return export.WriteCSV(buf, list)
	})
}

func (s *Server) GetTableExportXLSX(w http.ResponseWriter, r *http.Request) {
	s.writeExport(w, r, "xlsx", xlsxContentType, func(buf *bytes.Buffer, list []leads.Lead) error {
		return export.WriteXLSX(buf, "Leads", list)
	})
}

// writeExport renders the table's active leads into memory first so a failure
// still produces a JSON error instead of a truncated file.
func (s *Server) writeExport(w http.ResponseWriter, r *http.Request, format, contentType string, render func(*bytes.Buffer, []leads.Lead) error) {
	actor, table, ok := s.requireTable(w, r)
	if !ok {
		return
	}

	list, err := s.Store.ListLeads(r.Context(), table.ID, false)
	if err != nil {
		httpx.WriteAppError(w, r, apperr.Storage("EXPORT_FAILED", "Failed to load leads", err))
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, list); err != nil {
		s.Logger.Error("export_render_failed", "table_id", table.ID.String(), "format", format, "error", err.Error())
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to generate export", nil)
		return
	}

	filename := fmt.Sprintf("leads-%s.%s", table.ID, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	userID := actor.UserID
	tableID := table.ID
	if err := s.Audit.Log(r.Context(), audit.Entry{
		OrgID:      table.OrgID,
		ActorID:    &userID,
		TableID:    &tableID,
		Action:     "export.download",
		EntityType: "lead_table",
		EntityID:   &tableID,
		RequestID:  middleware.RequestIDFromContext(r.Context()),
		Metadata: map[string]any{
			"filename": filename,
			"format":   format,
			"rows":     len(list),
		},
	}); err != nil {
		s.Logger.Warn("export_audit_failed", "table_id", table.ID.String(), "error", err.Error())
	}
}
