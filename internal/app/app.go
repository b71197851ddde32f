// Package app wires the catalogue service from configuration. It is shared
// by the HTTP server and the command line tool.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/pharmstock/backend-go/internal/cache"
	"github.com/andresuchdata/pharmstock/backend-go/internal/catalogue"
	"github.com/andresuchdata/pharmstock/backend-go/internal/config"
	"github.com/andresuchdata/pharmstock/backend-go/internal/drive"
	"github.com/andresuchdata/pharmstock/backend-go/internal/repository"
	"github.com/andresuchdata/pharmstock/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/pharmstock/backend-go/internal/service"
	"github.com/andresuchdata/pharmstock/backend-go/internal/storage"
)

// App holds the wired service and the resources to release on exit.
type App struct {
	Config  *config.Config
	Service *service.CatalogueService
	DB      *postgres.DB

	closers []func() error
}

// Close releases the database pool.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStore returns the Postgres store when the database is enabled, else
// the in-memory one.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, *postgres.DB, error) {
	if !cfg.Enabled {
		log.Warn().Msg("database disabled, corrections and settings are kept in memory")
		return repository.NewMemory(), nil, nil
	}
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewStore(db), db, nil
}

// New builds the service and restores the persisted operator state.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	store, db, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.DB = db
		a.closers = append(a.closers, db.Close)
	}

	catalogueCache, err := cache.NewCatalogueCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("cache unavailable, continuing without it")
		catalogueCache = cache.NewNoopCatalogueCache()
	}

	opts := service.Options{
		Session: catalogue.NewSession(catalogue.Options{
			Brands:           cfg.Matching.Brands(),
			Settings:         cfg.Analysis,
			CustomCategories: cfg.Matching.CustomCategories,
		}),
		Store:        store,
		Cache:        catalogueCache,
		Brands:       cfg.Matching.Brands(),
		InboxPrefix:  cfg.Storage.InboxPrefix,
		ReportPrefix: cfg.Storage.ReportPrefix,
		UploadDir:    cfg.App.UploadDir,
		ReportDir:    cfg.App.ReportDir,
		Workers:      cfg.App.WorkerCount,
	}

	if cfg.Storage.Enabled {
		objects, err := storage.NewMinioStorage(cfg.Storage)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts.Objects = objects
	}

	if cfg.Drive.Enabled {
		driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			a.Close()
			return nil, err
		}
		folderID, err := driveService.FindFolderByPath(ctx, cfg.Drive.FolderPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("drive folder %q: %w", cfg.Drive.FolderPath, err)
		}
		opts.Drive = drive.NewDownloader(driveService)
		opts.DriveFolder = folderID
	}

	a.Service = service.NewCatalogueService(opts)
	if err := a.Service.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
