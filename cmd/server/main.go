package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadboard/apps/api/internal/app"
	"github.com/leadboard/apps/api/internal/config"
	"github.com/leadboard/apps/api/internal/db"
	"github.com/leadboard/apps/api/internal/events"
	"github.com/leadboard/apps/api/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		rabbit, err := events.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		publisher = rabbit
		logger.Info("audit_events_publisher", "backend", "rabbitmq")
	}

	blobs, err := app.OpenBlobStore(cfg.Blob)
	if err != nil {
		logger.Error("open blob store", "error", err)
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	router, err := app.New(cfg, pool, app.Deps{Publisher: publisher, Blob: blobs, Metrics: m}, logger)
	if err != nil {
		logger.Error("build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	go func() {
		logger.Info("api_started", "addr", cfg.Addr, "env", cfg.Env, "blob_backend", cfg.Blob.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("api_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
