// Package main provides the table extraction API server entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical/pdf-tables/internal/config"
	"github.com/spherical/pdf-tables/internal/observability"
	"github.com/spherical/pdf-tables/internal/pdf"
)

func main() {
	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	opener := pdf.NewOpener(pdf.NewValidator(cfg.Extraction.StrictValidation))
	app, err := NewApp(cfg, logger, opener, pdf.NewLayoutFinder())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize service")
	}

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("upload_dir", cfg.Storage.UploadDir).
		Str("output_dir", cfg.Storage.OutputDir).
		Int("workers", cfg.Extraction.Workers).
		Int("queue_size", cfg.Extraction.QueueSize).
		Str("empty_page_policy", cfg.Extraction.EmptyPagePolicy).
		Msg("Starting table extraction API")

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      NewRouter(app),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt or error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	// Graceful shutdown: stop taking uploads, then let accepted jobs finish
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	if err := app.Dispatcher.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Extraction jobs interrupted at shutdown")
	}

	logger.Info().Msg("Server stopped")
}
