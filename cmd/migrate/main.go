package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/leadboard/apps/api/internal/db"
	"github.com/leadboard/apps/api/migrations"
)

func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "migrations directory (defaults to the embedded set)")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	var fsys fs.FS = migrations.FS
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, fsys); err != nil {
		log.Fatalf("goose up: %v", err)
	}
}
