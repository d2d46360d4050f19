package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/blob"
	"github.com/leadboard/apps/api/internal/bulk"
	"github.com/leadboard/apps/api/internal/config"
	"github.com/leadboard/apps/api/internal/httpx"
	"github.com/leadboard/apps/api/internal/importer"
	"github.com/leadboard/apps/api/internal/leads"
	"github.com/leadboard/apps/api/internal/metrics"
	"github.com/leadboard/apps/api/internal/middleware"
	"github.com/leadboard/apps/api/internal/store"
)

// Store is the persistence the handlers read from directly. Import and bulk
// writes go through the importer and the bulk engine.
type Store interface {
	bulk.ScopeChecker
	GetTable(ctx context.Context, orgID, tableID uuid.UUID) (leads.Table, error)
	ListImportBatches(ctx context.Context, tableID uuid.UUID, limit int) ([]leads.ImportBatch, error)
	CreateLead(ctx context.Context, table leads.Table, item store.NewLead) (leads.Lead, error)
	ListLeads(ctx context.Context, tableID uuid.UUID, includeArchived bool) ([]leads.Lead, error)
}

type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

type Server struct {
	Config   config.Config
	Store    Store
	Importer *importer.Importer
	Bulk     *bulk.Engine
	Audit    Auditor
	Blob     blob.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func NewServer(
	cfg config.Config,
	st Store,
	im *importer.Importer,
	engine *bulk.Engine,
	auditLogger Auditor,
	blobs blob.Store,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Config:   cfg,
		Store:    st,
		Importer: im,
		Bulk:     engine,
		Audit:    auditLogger,
		Blob:     blobs,
		Metrics:  m,
		Logger:   logger,
	}
}

func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireTable resolves the authenticated actor and the {tableId} route
// parameter to a table of the actor's org, writing the error response itself
// when that fails.
func (s *Server) requireTable(w http.ResponseWriter, r *http.Request) (middleware.Actor, leads.Table, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "Authentication required", nil)
		return middleware.Actor{}, leads.Table{}, false
	}

	tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid table id", nil)
		return middleware.Actor{}, leads.Table{}, false
	}

	table, err := s.Store.GetTable(r.Context(), actor.OrgID, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, r, http.StatusNotFound, "TABLE_NOT_FOUND", "Table was not found", nil)
			return middleware.Actor{}, leads.Table{}, false
		}
		s.Logger.Error("table_lookup_failed", "table_id", tableID.String(), "error", err.Error())
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load table", nil)
		return middleware.Actor{}, leads.Table{}, false
	}
	return actor, table, true
}
