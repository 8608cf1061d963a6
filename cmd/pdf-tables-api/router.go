// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/pdf-tables/cmd/pdf-tables-api/handlers"
	"github.com/spherical/pdf-tables/cmd/pdf-tables-api/middleware"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(app *App) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(app.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}

	health := handlers.NewHealthHandler(cfg.Observability.ServiceName, app.Dispatcher, app.Uploads.Root(), app.Jobs.Root())
	uploads := handlers.NewUploadHandler(app.Logger, app.IDs, app.Uploads, app.Jobs, app.Dispatcher, handlers.UploadConfig{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		SniffBytes:     cfg.Extraction.SniffBytes,
	})
	results := handlers.NewResultsHandler(app.Logger, app.Jobs)

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	r.Post("/", uploads.Upload)
	r.Get("/{uid}", results.Get)
	r.Get("/{uid}/status", results.Status)

	return r
}
