package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/app"
	"github.com/leadboard/apps/api/internal/audit"
	"github.com/leadboard/apps/api/internal/blob"
	"github.com/leadboard/apps/api/internal/config"
	"github.com/leadboard/apps/api/internal/db"
	"github.com/leadboard/apps/api/internal/events"
	"github.com/leadboard/apps/api/internal/importer"
	"github.com/leadboard/apps/api/internal/store"
)

// importcsv runs one CSV through the same pipeline as the upload endpoint.
func main() {
	orgFlag := flag.String("org", "", "org id owning the table")
	tableFlag := flag.String("table", "", "lead table id")
	actorFlag := flag.String("actor", "", "user id recorded as the importer")
	file := flag.String("file", "", "local CSV file")
	storagePath := flag.String("storage-path", "", "object path in the configured blob store")
	configJSON := flag.String("config", "", "import config JSON (mapping, source_type, source_detail, default_stage)")
	flag.Parse()

	if (*file == "") == (*storagePath == "") {
		log.Fatal("exactly one of -file or -storage-path is required")
	}
	orgID := mustUUID("org", *orgFlag)
	tableID := mustUUID("table", *tableFlag)
	actorID := mustUUID("actor", *actorFlag)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	data, filename, err := readInput(ctx, cfg, *file, *storagePath, blob.TablePrefix(orgID, tableID))
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	text, err := importer.DecodeText(data)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	importConfig, err := importer.ParseConfig([]byte(*configJSON))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	st := store.New(pool)
	table, err := st.GetTable(ctx, orgID, tableID)
	if err != nil {
		log.Fatalf("load table: %v", err)
	}

	im := importer.New(st, audit.NewLogger(st, events.Noop{}, logger), logger)
	result, err := im.Import(ctx, importer.Request{
		Table:     table,
		ActorID:   actorID,
		RequestID: "cli-" + uuid.NewString(),
		Filename:  filename,
		Text:      text,
		Config:    importConfig,
		MaxRows:   cfg.ImportMaxRows,
	})

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		log.Fatalf("import: %v", err)
	}
}

func readInput(ctx context.Context, cfg config.Config, file, storagePath, prefix string) ([]byte, string, error) {
	if file != "" {
		info, err := os.Stat(file)
		if err != nil {
			return nil, "", err
		}
		if info.Size() > cfg.ImportMaxFileBytes {
			return nil, "", fmt.Errorf("file exceeds %d bytes", cfg.ImportMaxFileBytes)
		}
		data, err := os.ReadFile(file)
		return data, filepath.Base(file), err
	}

	objectPath, err := blob.CleanScopedPath(storagePath, prefix)
	if err != nil {
		return nil, "", fmt.Errorf("storage path must be under %s: %w", prefix, err)
	}
	blobs, err := app.OpenBlobStore(cfg.Blob)
	if err != nil {
		return nil, "", err
	}
	data, err := blobs.Download(ctx, objectPath, cfg.ImportMaxFileBytes)
	return data, filepath.Base(objectPath), err
}

func mustUUID(name, raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		log.Fatalf("-%s must be a uuid: %v", name, err)
	}
	return id
}
