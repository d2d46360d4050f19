package handlers

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/blob"
	"github.com/leadboard/apps/api/internal/httpx"
	"github.com/leadboard/apps/api/internal/importer"
	"github.com/leadboard/apps/api/internal/leads"
	"github.com/leadboard/apps/api/internal/middleware"
)

var supportedCSVContentTypes = map[string]struct{}{
	"text/csv":                 {},
	"application/csv":          {},
	"application/vnd.ms-excel": {},
	"text/plain":               {},
	"application/octet-stream": {},
}

var templateExampleRow = []string{
	"Blue Fern Studio", "New", "hello@bluefern.example", "bluefern.example", "Met at spring expo",
	"Referral", "Jane from the expo", "", "", "false", "", "",
}

type storageImportRequest struct {
	StoragePath string          `json:"storage_path"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// importUpload is the CSV payload of an import request, whichever way it arrived.
type importUpload struct {
	filename string
	data     []byte
	config   []byte
}

type uploadError struct {
	status  int
	code    string
	message string
	details any
}

func (s *Server) PostTableImport(w http.ResponseWriter, r *http.Request) {
	actor, table, ok := s.requireTable(w, r)
	if !ok {
		return
	}

	upload, uerr := s.readImportUpload(r, table)
	if uerr != nil {
		httpx.WriteError(w, r, uerr.status, uerr.code, uerr.message, uerr.details)
		return
	}

	cfg, err := importer.ParseConfig(upload.config)
	if err != nil {
		httpx.WriteAppError(w, r, err)
		return
	}

	text, err := importer.DecodeText(upload.data)
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ENCODING", "File could not be decoded as text", nil)
		return
	}

	result, err := s.Importer.Import(r.Context(), importer.Request{
		Table:     table,
		ActorID:   actor.UserID,
		RequestID: middleware.RequestIDFromContext(r.Context()),
		Filename:  upload.filename,
		Text:      text,
		Config:    cfg,
		MaxRows:   s.Config.ImportMaxRows,
	})
	if err != nil {
		outcome := "error"
		if apperr.IsKind(err, apperr.KindPartial) {
			outcome = "partial"
		}
		s.Metrics.RecordImport(outcome, result.ImportedCount, len(result.DuplicateCandidates), result.InvalidRows)
		httpx.WriteAppError(w, r, err)
		return
	}

	s.Metrics.RecordImport("success", result.ImportedCount, len(result.DuplicateCandidates), result.InvalidRows)
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) readImportUpload(r *http.Request, table leads.Table) (importUpload, *uploadError) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return s.readMultipartUpload(r)
	case "application/json":
		return s.readStorageUpload(r, table)
	default:
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "INVALID_CONTENT_TYPE",
			message: "Content-Type must be multipart/form-data or application/json",
		}
	}
}

func (s *Server) readMultipartUpload(r *http.Request) (importUpload, *uploadError) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return importUpload{}, fileTooLarge(s.Config.ImportMaxFileBytes)
		}
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "INVALID_MULTIPART",
			message: "Failed to parse multipart form",
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "MISSING_FILE",
			message: "file is required",
		}
	}
	defer file.Close()

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".csv":
		if contentType != "" {
			if _, ok := supportedCSVContentTypes[contentType]; !ok {
				return importUpload{}, &uploadError{
					status:  http.StatusBadRequest,
					code:    "INVALID_CONTENT_TYPE",
					message: "Unsupported CSV content type",
					details: map[string]any{"content_type": contentType},
				}
			}
		}
	case ".xlsx":
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "XLSX_NOT_SUPPORTED",
			message: "XLSX import is not supported. Please export and upload CSV.",
		}
	default:
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "INVALID_FILE_TYPE",
			message: "Only .csv uploads are supported",
		}
	}

	if s.Config.ImportMaxFileBytes > 0 && header.Size > s.Config.ImportMaxFileBytes {
		return importUpload{}, fileTooLarge(s.Config.ImportMaxFileBytes)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "INVALID_FILE",
			message: "Failed to read uploaded file",
		}
	}

	return importUpload{
		filename: header.Filename,
		data:     data,
		config:   []byte(r.FormValue("config")),
	}, nil
}

// readStorageUpload only serves objects below the table's own upload prefix.
func (s *Server) readStorageUpload(r *http.Request, table leads.Table) (importUpload, *uploadError) {
	var req storageImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "BAD_REQUEST",
			message: "Malformed JSON body",
		}
	}
	if strings.TrimSpace(req.StoragePath) == "" {
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "MISSING_FILE",
			message: "storage_path is required",
		}
	}

	prefix := blob.TablePrefix(table.OrgID, table.ID)
	objectPath, err := blob.CleanScopedPath(req.StoragePath, prefix)
	switch {
	case errors.Is(err, blob.ErrOutOfScope):
		s.Logger.Warn("storage_path_out_of_scope", "table_id", table.ID.String(), "storage_path", req.StoragePath)
		return importUpload{}, &uploadError{
			status:  http.StatusBadRequest,
			code:    "INVALID_STORAGE_PATH",
			message: "storage_path must belong to this table",
			details: map[string]any{"required_prefix": prefix},
		}
	case err != nil:
		return importUpload{}, &uploadError{status: http.StatusBadRequest, code: "INVALID_STORAGE_PATH", message: "storage_path is invalid"}
	}

	data, err := s.Blob.Download(r.Context(), objectPath, s.Config.ImportMaxFileBytes)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrInvalidPath):
			return importUpload{}, &uploadError{status: http.StatusBadRequest, code: "INVALID_STORAGE_PATH", message: "storage_path is invalid"}
		case errors.Is(err, blob.ErrNotFound):
			return importUpload{}, &uploadError{status: http.StatusNotFound, code: "FILE_NOT_FOUND", message: "Stored file was not found"}
		case errors.Is(err, blob.ErrTooLarge):
			return importUpload{}, fileTooLarge(s.Config.ImportMaxFileBytes)
		}
		s.Logger.Error("blob_download_failed", "storage_path", objectPath, "error", err.Error())
		return importUpload{}, &uploadError{status: http.StatusInternalServerError, code: "DOWNLOAD_FAILED", message: "Failed to download stored file"}
	}

	return importUpload{
		filename: path.Base(objectPath),
		data:     data,
		config:   req.Config,
	}, nil
}

func fileTooLarge(maxBytes int64) *uploadError {
	return &uploadError{
		status:  http.StatusRequestEntityTooLarge,
		code:    "FILE_TOO_LARGE",
		message: "Uploaded file exceeds the size limit",
		details: map[string]any{"max_bytes": maxBytes},
	}
}

type importBatchResponse struct {
	ID                  uuid.UUID        `json:"id"`
	TableID             uuid.UUID        `json:"table_id"`
	CreatedBy           uuid.UUID        `json:"created_by"`
	Filename            string           `json:"filename"`
	SourceDefaultType   leads.SourceType `json:"source_default_type"`
	SourceDefaultDetail *string          `json:"source_default_detail"`
	RowCount            int              `json:"row_count"`
	CreatedAt           time.Time        `json:"created_at"`
}

func (s *Server) GetTableImports(w http.ResponseWriter, r *http.Request) {
	_, table, ok := s.requireTable(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			httpx.WriteError(w, r, http.StatusBadRequest, "BAD_REQUEST", "limit must be between 1 and 200", nil)
			return
		}
		limit = parsed
	}

	batches, err := s.Store.ListImportBatches(r.Context(), table.ID, limit)
	if err != nil {
		httpx.WriteAppError(w, r, apperr.Storage("LIST_IMPORTS_FAILED", "Failed to list import batches", err))
		return
	}

	items := make([]importBatchResponse, 0, len(batches))
	for _, b := range batches {
		items = append(items, importBatchResponse{
			ID:                  b.ID,
			TableID:             b.TableID,
			CreatedBy:           b.CreatedBy,
			Filename:            b.Filename,
			SourceDefaultType:   b.SourceDefaultType,
			SourceDefaultDetail: b.SourceDefaultDetail,
			RowCount:            b.RowCount,
			CreatedAt:           b.CreatedAt.UTC(),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) GetImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "leads-import-template.csv"))
	writer := csv.NewWriter(w)
	_ = writer.Write(importer.TemplateHeaders)
	_ = writer.Write(templateExampleRow)
	writer.Flush()
}
