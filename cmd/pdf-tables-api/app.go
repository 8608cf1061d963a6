package main

import (
	"fmt"
	"os"

	"github.com/spherical/pdf-tables/internal/config"
	"github.com/spherical/pdf-tables/internal/dispatch"
	"github.com/spherical/pdf-tables/internal/domain"
	"github.com/spherical/pdf-tables/internal/extract"
	"github.com/spherical/pdf-tables/internal/jobid"
	"github.com/spherical/pdf-tables/internal/jobstore"
	"github.com/spherical/pdf-tables/internal/observability"
	"github.com/spherical/pdf-tables/internal/upload"
)

// App holds the service's wired components.
type App struct {
	Config     *config.Config
	Logger     *observability.Logger
	IDs        jobid.Generator
	Uploads    *upload.Store
	Jobs       *jobstore.Store
	Engine     *extract.Service
	Dispatcher *dispatch.Dispatcher
}

// NewApp creates the storage directories and wires the engine to a worker pool.
func NewApp(cfg *config.Config, logger *observability.Logger, opener domain.DocumentOpener, finder domain.TableFinder) (*App, error) {
	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}

	ids, err := jobid.NewGenerator(cfg.Extraction.IDStrategy)
	if err != nil {
		return nil, err
	}

	jobs := jobstore.NewStore(cfg.Storage.OutputDir)
	engine := extract.NewService(opener, finder, jobs,
		extract.WithEmptyPagePolicy(extract.EmptyPagePolicy(cfg.Extraction.EmptyPagePolicy)),
		extract.WithLogger(logger),
	)
	pool := dispatch.New(engine,
		dispatch.WithWorkers(cfg.Extraction.Workers),
		dispatch.WithQueueSize(cfg.Extraction.QueueSize),
		dispatch.WithJobTimeout(cfg.Extraction.JobTimeout),
		dispatch.WithLogger(logger),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		IDs:        ids,
		Uploads:    upload.NewStore(cfg.Storage.UploadDir),
		Jobs:       jobs,
		Engine:     engine,
		Dispatcher: pool,
	}, nil
}
