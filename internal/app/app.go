package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/blob"
	"github.com/leadboard/apps/api/internal/bulk"
	"github.com/leadboard/apps/api/internal/config"
	"github.com/leadboard/apps/api/internal/events"
	"github.com/leadboard/apps/api/internal/handlers"
	"github.com/leadboard/apps/api/internal/importer"
	"github.com/leadboard/apps/api/internal/metrics"
	"github.com/leadboard/apps/api/internal/store"
)

// Deps are the process-level collaborators built by cmd/server.
type Deps struct {
	Publisher events.Publisher
	Blob      blob.Store
	Metrics   *metrics.Metrics
}

// New wires the store, audit log, import pipeline and bulk engine behind the
// HTTP router.
func New(cfg config.Config, pool *pgxpool.Pool, deps Deps, logger *slog.Logger) (http.Handler, error) {
	st := store.New(pool)
	auditLogger := audit.NewLogger(st, deps.Publisher, logger)
	im := importer.New(st, auditLogger, logger)
	engine := bulk.NewEngine(st, auditLogger, logger)

	h := handlers.NewServer(cfg, st, im, engine, auditLogger, deps.Blob, deps.Metrics, logger)
	return NewRouter(cfg, st, h, deps.Metrics, logger)
}

// OpenBlobStore builds the configured object store for storage-path imports.
func OpenBlobStore(cfg config.BlobConfig) (blob.Store, error) {
	switch cfg.Backend {
	case config.BlobBackendS3:
		return blob.NewS3(blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case config.BlobBackendLocal, "":
		return blob.NewLocal(cfg.LocalDir), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend %q", cfg.Backend)
	}
}
