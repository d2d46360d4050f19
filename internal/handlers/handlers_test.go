package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/blob"
	"github.com/leadboard/apps/api/internal/bulk"
	"github.com/leadboard/apps/api/internal/config"
	"github.com/leadboard/apps/api/internal/importer"
	"github.com/leadboard/apps/api/internal/leads"
	"github.com/leadboard/apps/api/internal/middleware"
	"github.com/leadboard/apps/api/internal/store"
)

// memStore backs the handlers, the importer and the bulk engine.
type memStore struct {
	mu       sync.Mutex
	table    leads.Table
	leads    map[uuid.UUID]*leads.Lead
	services map[uuid.UUID]struct{}
	batches  []leads.ImportBatch
}

func newMemStore(table leads.Table) *memStore {
	return &memStore{table: table, leads: map[uuid.UUID]*leads.Lead{}, services: map[uuid.UUID]struct{}{}}
}

func (m *memStore) GetTable(_ context.Context, orgID, tableID uuid.UUID) (leads.Table, error) {
	if orgID != m.table.OrgID || tableID != m.table.ID {
		return leads.Table{}, store.ErrNotFound
	}
	return m.table, nil
}

func (m *memStore) ListImportBatches(_ context.Context, _ uuid.UUID, limit int) ([]leads.ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.batches) > limit {
		return m.batches[:limit], nil
	}
	return m.batches, nil
}

func (m *memStore) CreateLead(_ context.Context, table leads.Table, item store.NewLead) (leads.Lead, error) {
	return m.insert(table, item.Candidate, item.ImportBatchID), nil
}

func (m *memStore) insert(table leads.Table, c leads.CandidateLead, batchID *uuid.UUID) leads.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	var followup *time.Time
	if c.NextFollowupAt != nil {
		if t, ok := leads.ParseFollowupDate(*c.NextFollowupAt); ok {
			followup = &t
		}
	}
	now := time.Now().UTC()
	l := &leads.Lead{
		ID: uuid.New(), TableID: table.ID, OrgID: table.OrgID, BusinessName: c.BusinessName,
		Stage: c.Stage, Contact: c.Contact, WebsiteURL: c.WebsiteURL, Domain: c.Domain, Notes: c.Notes,
		SourceType: c.SourceType, SourceDetail: c.SourceDetail, OwnerID: c.OwnerID, NextFollowupAt: followup,
		DoNotContact: c.DoNotContact, DNCReason: c.DNCReason, LostReason: c.LostReason,
		ImportBatchID: batchID, CreatedAt: now, UpdatedAt: now,
	}
	m.leads[l.ID] = l
	return *l
}

func (m *memStore) ListLeads(_ context.Context, _ uuid.UUID, includeArchived bool) ([]leads.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []leads.Lead
	for _, l := range m.leads {
		if l.IsArchived && !includeArchived {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}

func (m *memStore) MissingLeads(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := m.leads[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *memStore) MissingServices(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := m.services[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (m *memStore) ExistingKeys(_ context.Context, _ uuid.UUID, key leads.DuplicateReason, values []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[string]struct{}{}
	for _, v := range values {
		wanted[v] = struct{}{}
	}
	found := map[string]struct{}{}
	for _, l := range m.leads {
		var value *string
		switch key {
		case leads.ReasonDomain:
			value = l.Domain
		case leads.ReasonContact:
			value = l.Contact
		case leads.ReasonWebsiteURL:
			value = l.WebsiteURL
		}
		if value == nil {
			continue
		}
		if _, ok := wanted[*value]; ok {
			found[*value] = struct{}{}
		}
	}
	return found, nil
}

func (m *memStore) CreateImportBatch(_ context.Context, batch leads.ImportBatch) (leads.ImportBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch.ID = uuid.New()
	batch.CreatedAt = time.Now().UTC()
	m.batches = append(m.batches, batch)
	return batch, nil
}

func (m *memStore) InsertLeads(_ context.Context, table leads.Table, batchID uuid.UUID, candidates []leads.CandidateLead) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, c := range candidates {
		id := batchID
		ids = append(ids, m.insert(table, c, &id).ID)
	}
	return ids, nil
}

func (m *memStore) UpdateLeads(_ context.Context, _ uuid.UUID, ids []uuid.UUID, patch bulk.Patch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		l, ok := m.leads[id]
		if !ok {
			continue
		}
		if patch.IsArchived.Set {
			l.IsArchived = patch.IsArchived.Value
		}
		if patch.Stage.Set {
			l.Stage = patch.Stage.Value
		}
		n++
	}
	return n, nil
}

func (m *memStore) LinkServices(context.Context, []uuid.UUID, []uuid.UUID) error   { return nil }
func (m *memStore) UnlinkServices(context.Context, []uuid.UUID, []uuid.UUID) error { return nil }

type memAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *memAudit) Log(ctx context.Context, entry audit.Entry) error {
	return a.LogBatch(ctx, []audit.Entry{entry})
}

func (a *memAudit) LogBatch(_ context.Context, entries []audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entries...)
	return nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type testEnv struct {
	router  http.Handler
	store   *memStore
	audit   *memAudit
	actor   middleware.Actor
	table   leads.Table
	blobDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	orgID := uuid.New()
	table := leads.Table{
		ID:    uuid.New(),
		OrgID: orgID,
		Name:  "Prospects",
		TableDefaults: leads.TableDefaults{
			DefaultStage:      leads.StageNew,
			DefaultSourceType: leads.SourceUnknown,
		},
	}
	actor := middleware.Actor{UserID: uuid.New(), OrgID: orgID}

	st := newMemStore(table)
	rec := &memAudit{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobDir := t.TempDir()

	cfg := config.Config{BulkMaxLeads: 500, ImportMaxRows: 100, ImportMaxFileBytes: 1 << 20}
	s := NewServer(cfg, st, importer.New(st, rec, logger), bulk.NewEngine(st, rec, logger), rec, blob.NewLocal(blobDir), nil, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithActor(r.Context(), actor)))
		})
	})
	r.Get("/imports/template.csv", s.GetImportTemplate)
	r.Route("/tables/{tableId}", func(tr chi.Router) {
		tr.Post("/import", s.PostTableImport)
		tr.Get("/imports", s.GetTableImports)
		tr.Post("/leads", s.PostTableLeads)
		tr.Post("/leads/bulk", s.PostTableLeadsBulk)
		tr.Get("/export.csv", s.GetTableExportCSV)
		tr.Get("/export.xlsx", s.GetTableExportXLSX)
	})

	return &testEnv{router: r, store: st, audit: rec, actor: actor, table: table, blobDir: blobDir}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) path(suffix string) string {
	return "/tables/" + e.table.ID.String() + suffix
}

func multipartImport(t *testing.T, target, filename, csvText, cfg string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(csvText))
	require.NoError(t, err)
	if cfg != "" {
		require.NoError(t, mw.WriteField("config", cfg))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error.Code
}

func TestPostTableImportMultipart(t *testing.T) {
	env := newTestEnv(t)
	csvText := "Company,stage,contact,website_url\n" +
		"Acme,New,,acme.example\n" +
		"Beta,Contacted,,\n" +
		",New,,\n"
	req := multipartImport(t, env.path("/import"), "leads.csv", csvText, `{"mapping":{"business_name":"Company"},"source_type":"Referral"}`)

	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, 1, result.InvalidRows)
	require.NotNil(t, result.BatchID)
	assert.Empty(t, result.DuplicateCandidates)

	list, err := env.store.ListLeads(context.Background(), env.table.ID, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, leads.SourceReferral, list[0].SourceType)
	require.NotNil(t, list[0].WebsiteURL)
	assert.Equal(t, "https://acme.example", *list[0].WebsiteURL)

	require.Len(t, env.store.batches, 1)
	assert.Equal(t, 3, env.store.batches[0].RowCount)
	assert.Equal(t, "leads.csv", env.store.batches[0].Filename)
	assert.Equal(t, []string{importer.ActionImported}, env.audit.actions())
}

func TestPostTableImportFlagsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	first := multipartImport(t, env.path("/import"), "a.csv", "business_name,website_url\nAcme,https://www.acme.example/\n", "")
	require.Equal(t, http.StatusOK, env.do(t, first).Code)

	second := multipartImport(t, env.path("/import"), "b.csv", "business_name,website_url\nAcme Again,acme.example\n", "")
	rec := env.do(t, second)
	require.Equal(t, http.StatusOK, rec.Code)

	var result importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.ImportedCount, "duplicates are advisory")
	require.Len(t, result.DuplicateCandidates, 1)
	assert.Equal(t, 1, result.DuplicateCandidates[0].RowIndex)
	assert.Equal(t, []leads.DuplicateReason{leads.ReasonDomain}, result.DuplicateCandidates[0].Reasons)
}

func TestPostTableImportFromStoragePath(t *testing.T) {
	env := newTestEnv(t)
	prefix := blob.TablePrefix(env.table.OrgID, env.table.ID)
	require.NoError(t, os.MkdirAll(filepath.Join(env.blobDir, filepath.FromSlash(prefix)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.blobDir, filepath.FromSlash(prefix), "batch.csv"), []byte("business_name\nAcme\nBeta\n"), 0o644))

	rec := env.do(t, jsonRequest(t, http.MethodPost, env.path("/import"), map[string]any{
		"storage_path": prefix + "batch.csv",
		"config":       map[string]any{"default_stage": "Replied"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.ImportedCount)
	assert.Equal(t, "batch.csv", env.store.batches[0].Filename)

	missing := env.do(t, jsonRequest(t, http.MethodPost, env.path("/import"), map[string]any{"storage_path": prefix + "none.csv"}))
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "FILE_NOT_FOUND", errorCode(t, missing))

	escape := env.do(t, jsonRequest(t, http.MethodPost, env.path("/import"), map[string]any{"storage_path": "../secret.csv"}))
	assert.Equal(t, http.StatusBadRequest, escape.Code)
	assert.Equal(t, "INVALID_STORAGE_PATH", errorCode(t, escape))
}

func TestPostTableImportRejectsForeignStoragePath(t *testing.T) {
	env := newTestEnv(t)
	otherOrg := blob.TablePrefix(uuid.New(), env.table.ID)
	otherTable := blob.TablePrefix(env.table.OrgID, uuid.New())
	for _, prefix := range []string{otherOrg, otherTable, "uploads/"} {
		dir := filepath.Join(env.blobDir, filepath.FromSlash(prefix))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "leads.csv"), []byte("business_name\nSecret Co\n"), 0o644))
	}

	for _, storagePath := range []string{
		otherOrg + "leads.csv",
		otherTable + "leads.csv",
		"uploads/leads.csv",
		blob.TablePrefix(env.table.OrgID, env.table.ID) + "../../" + uuid.NewString() + "/leads.csv",
	} {
		rec := env.do(t, jsonRequest(t, http.MethodPost, env.path("/import"), map[string]any{"storage_path": storagePath}))
		assert.Equal(t, http.StatusBadRequest, rec.Code, storagePath)
		assert.Equal(t, "INVALID_STORAGE_PATH", errorCode(t, rec), storagePath)
	}
	assert.Empty(t, env.store.batches)
	assert.Empty(t, env.store.leads)
}

func TestPostTableImportRejections(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		req      *http.Request
		status   int
		wantCode string
	}{
		{
			name:     "xlsx upload",
			req:      multipartImport(t, env.path("/import"), "leads.xlsx", "x", ""),
			status:   http.StatusBadRequest,
			wantCode: "XLSX_NOT_SUPPORTED",
		},
		{
			name:     "unknown mapping field",
			req:      multipartImport(t, env.path("/import"), "leads.csv", "business_name\nAcme\n", `{"mapping":{"company":"Company"}}`),
			status:   http.StatusBadRequest,
			wantCode: "INVALID_MAPPING",
		},
		{
			name:     "malformed config",
			req:      multipartImport(t, env.path("/import"), "leads.csv", "business_name\nAcme\n", `{nope`),
			status:   http.StatusBadRequest,
			wantCode: "INVALID_CONFIG",
		},
		{
			name:     "unknown table",
			req:      multipartImport(t, "/tables/"+uuid.NewString()+"/import", "leads.csv", "business_name\nAcme\n", ""),
			status:   http.StatusNotFound,
			wantCode: "TABLE_NOT_FOUND",
		},
		{
			name:     "unsupported content type",
			req:      httptest.NewRequest(http.MethodPost, env.path("/import"), strings.NewReader("business_name\nAcme\n")),
			status:   http.StatusBadRequest,
			wantCode: "INVALID_CONTENT_TYPE",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rec))
		})
	}
	assert.Empty(t, env.store.batches)
}

func TestPostTableImportRowLimit(t *testing.T) {
	env := newTestEnv(t)
	var b strings.Builder
	b.WriteString("business_name\n")
	for i := 0; i < 101; i++ {
		b.WriteString("Lead\n")
	}

	rec := env.do(t, multipartImport(t, env.path("/import"), "big.csv", b.String(), ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ROW_LIMIT_EXCEEDED", errorCode(t, rec))
}

func TestGetTableImports(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, multipartImport(t, env.path("/import"), "a.csv", "business_name\nAcme\n", "")).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, env.path("/imports"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []importBatchResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "a.csv", body.Items[0].Filename)
	assert.Equal(t, env.actor.UserID, body.Items[0].CreatedBy)

	bad := env.do(t, httptest.NewRequest(http.MethodGet, env.path("/imports?limit=0"), nil))
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestPostTableLeads(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, jsonRequest(t, http.MethodPost, env.path("/leads"), map[string]any{
		"business_name": "  Acme  ",
		"website_url":   "WWW.Acme.example/",
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var lead leadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.Equal(t, "Acme", lead.BusinessName)
	assert.Equal(t, leads.StageNew, lead.Stage)
	require.NotNil(t, lead.Domain)
	assert.Equal(t, "acme.example", *lead.Domain)
	assert.Equal(t, []string{actionCreated}, env.audit.actions())
}

func TestPostTableLeadsValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		body     map[string]any
		wantCode string
	}{
		{"missing name", map[string]any{"business_name": " "}, "INVALID_LEAD"},
		{"unknown stage", map[string]any{"business_name": "Acme", "stage": "contacted"}, "INVALID_STAGE"},
		{"contacted without contact", map[string]any{"business_name": "Acme", "stage": "Contacted", "next_followup_at": "2026-03-01"}, "CONTACTED_REQUIRES_FOLLOWUP_AND_CONTACT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, jsonRequest(t, http.MethodPost, env.path("/leads"), tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rec))
		})
	}

	ok := env.do(t, jsonRequest(t, http.MethodPost, env.path("/leads"), map[string]any{
		"business_name":    "Acme",
		"stage":            "Contacted",
		"contact":          "a@acme.example",
		"next_followup_at": "2026-03-01",
	}))
	assert.Equal(t, http.StatusCreated, ok.Code, ok.Body.String())
}

func TestPostTableLeadsBulk(t *testing.T) {
	env := newTestEnv(t)
	a := env.store.insert(env.table, leads.CandidateLead{BusinessName: "A", Stage: leads.StageNew}, nil)
	b := env.store.insert(env.table, leads.CandidateLead{BusinessName: "B", Stage: leads.StageNew}, nil)

	rec := env.do(t, jsonRequest(t, http.MethodPost, env.path("/leads/bulk"), map[string]any{
		"lead_ids": []string{a.ID.String(), b.ID.String()},
		"action":   "archive",
		"payload":  map[string]any{},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body bulkResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, bulk.ActionArchive, body.Action)
	assert.Equal(t, int64(2), body.AffectedCount)
	assert.Equal(t, []string{"bulk_archive", "bulk_archive"}, env.audit.actions())

	list, err := env.store.ListLeads(context.Background(), env.table.ID, false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPostTableLeadsBulkRejections(t *testing.T) {
	env := newTestEnv(t)
	a := env.store.insert(env.table, leads.CandidateLead{BusinessName: "A", Stage: leads.StageNew}, nil)

	cases := []struct {
		name     string
		body     map[string]any
		wantCode string
	}{
		{
			name:     "duplicate ids",
			body:     map[string]any{"lead_ids": []string{a.ID.String(), a.ID.String()}, "action": "archive", "payload": map[string]any{}},
			wantCode: "BAD_REQUEST",
		},
		{
			name:     "lead outside table",
			body:     map[string]any{"lead_ids": []string{a.ID.String(), uuid.NewString()}, "action": "archive", "payload": map[string]any{}},
			wantCode: "LEADS_NOT_IN_TABLE",
		},
		{
			name:     "service outside table",
			body:     map[string]any{"lead_ids": []string{a.ID.String()}, "action": "add_services", "payload": map[string]any{"service_ids": []string{uuid.NewString()}}},
			wantCode: "SERVICES_NOT_IN_TABLE",
		},
		{
			name:     "contacted without followup",
			body:     map[string]any{"lead_ids": []string{a.ID.String()}, "action": "change_stage", "payload": map[string]any{"stage": "Contacted", "contact": "x"}},
			wantCode: "CONTACTED_REQUIRES_FOLLOWUP_AND_CONTACT",
		},
		{
			name:     "unknown action",
			body:     map[string]any{"lead_ids": []string{a.ID.String()}, "action": "delete", "payload": map[string]any{}},
			wantCode: "UNSUPPORTED_ACTION",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, jsonRequest(t, http.MethodPost, env.path("/leads/bulk"), tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, rec))
		})
	}
	assert.Empty(t, env.audit.actions())
}

func TestGetTableExports(t *testing.T) {
	env := newTestEnv(t)
	env.store.insert(env.table, leads.CandidateLead{BusinessName: "Acme", Stage: leads.StageNew, SourceType: leads.SourceWebsite}, nil)

	csvRec := env.do(t, httptest.NewRequest(http.MethodGet, env.path("/export.csv"), nil))
	require.Equal(t, http.StatusOK, csvRec.Code)
	assert.Equal(t, "text/csv", csvRec.Header().Get("Content-Type"))
	assert.Contains(t, csvRec.Header().Get("Content-Disposition"), env.table.ID.String()+".csv")
	lines := strings.Split(strings.TrimSpace(csvRec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,business_name,stage"))
	assert.Contains(t, lines[1], "Acme")

	xlsxRec := env.do(t, httptest.NewRequest(http.MethodGet, env.path("/export.xlsx"), nil))
	require.Equal(t, http.StatusOK, xlsxRec.Code)
	assert.Equal(t, xlsxContentType, xlsxRec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(xlsxRec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	assert.Equal(t, []string{"export.download", "export.download"}, env.audit.actions())
}

func TestGetImportTemplate(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/imports/template.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(importer.TemplateHeaders, ","), strings.TrimSpace(lines[0]))

	rows := importer.Tokenize(rec.Body.String())
	require.Len(t, rows, 1)
	candidate, ok := importer.NormalizeRow(rows[0], nil, leads.TableDefaults{DefaultStage: leads.StageNew, DefaultSourceType: leads.SourceUnknown})
	require.True(t, ok)
	assert.True(t, candidate.Valid())
}
