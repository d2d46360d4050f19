package app

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	openapimiddleware "github.com/oapi-codegen/nethttp-middleware"

	"github.com/leadboard/apps/api/internal/config"
	"github.com/leadboard/apps/api/internal/handlers"
	"github.com/leadboard/apps/api/internal/httpx"
	"github.com/leadboard/apps/api/internal/metrics"
	"github.com/leadboard/apps/api/internal/middleware"
)

//go:embed openapi.yaml
var openapiSpec []byte

// AccessStore resolves sessions and answers table permission checks.
type AccessStore interface {
	middleware.SessionResolver
	middleware.TableAccessChecker
}

func LoadOpenAPI() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

func NewRouter(cfg config.Config, access AccessStore, h *handlers.Server, m *metrics.Metrics, logger *slog.Logger) (http.Handler, error) {
	doc, err := LoadOpenAPI()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders(cfg.Env))
	r.Use(middleware.Logging(logger))
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-CSRF-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.LimitBodyBytesWithOverrides(cfg.APIMaxBodyBytes, []middleware.BodyLimitOverride{
		// multipart framing on top of the file itself
		{PathSuffix: "/import", MaxBytes: cfg.ImportMaxFileBytes + 1<<20},
	}))

	if m != nil && cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	api := chi.NewRouter()
	api.Use(openapimiddleware.OapiRequestValidatorWithOptions(doc, &openapimiddleware.Options{
		SilenceServersWarning: true,
		Options: openapi3filter.Options{
			// bodies are checked by the handlers so domain error codes survive
			ExcludeRequestBody: true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			requestID := w.Header().Get("X-Request-Id")
			httpx.WriteJSON(w, statusCode, httpx.ErrorEnvelope{
				Error:     httpx.ErrorBody{Code: "validation_error", Message: message},
				RequestID: requestID,
			})
		},
	}))

	authMW := middleware.AuthMiddleware{Sessions: access, CookieName: cfg.SessionCookieName, Logger: logger}
	importLimiter := middleware.NewIPRateLimiterWithMaxEntries(cfg.ImportRatePerMin, time.Minute, cfg.RateLimitMaxIPs)
	csrf := middleware.EnforceCSRF(cfg.CSRFEnforce)

	api.Get("/health", h.GetHealth)

	api.Group(func(protected chi.Router) {
		protected.Use(authMW.RequireAuth)
		protected.Get("/imports/template.csv", h.GetImportTemplate)

		protected.Route("/tables/{tableId}", func(table chi.Router) {
			table.Group(func(read chi.Router) {
				read.Use(middleware.RequireTableAccess(access, false))
				read.Get("/imports", h.GetTableImports)
				read.Get("/export.csv", h.GetTableExportCSV)
				read.Get("/export.xlsx", h.GetTableExportXLSX)
			})

			table.Group(func(edit chi.Router) {
				edit.Use(middleware.RequireTableAccess(access, true), csrf)
				edit.With(importLimiter.Middleware("Too many imports")).Post("/import", h.PostTableImport)
				edit.Post("/leads", h.PostTableLeads)
				edit.Post("/leads/bulk", h.PostTableLeadsBulk)
			})
		})
	})

	r.Mount("/api", api)
	return r, nil
}
