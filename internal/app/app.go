// Package app builds the object store, metadata store, cache and services
// from a *config.Config. Both the HTTP server and filectl start here.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/api/middleware"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/cache"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/config"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/domain"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/drive"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository/memory"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/service"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/storage"
	"github.com/andresuchdata/bizdir-admin/backend-go/internal/workflow"
)

type App struct {
	Config *config.Config

	Repo  repository.FileRepository
	Store storage.ObjectStorage
	Cache cache.FileListCache

	Uploads *service.UploadService
	Files   *service.FileService
	Query   *service.QueryService
	Runner  *workflow.Runner
	Drive   *drive.Importer

	db *postgres.DB
}

// Options lets callers skip parts they never use.
type Options struct {
	// SkipDrive leaves the Drive importer unset even when credentials exist.
	SkipDrive bool
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openRepository(ctx); err != nil {
		return nil, err
	}

	store, err := NewObjectStorage(cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	listCache, err := cache.NewFileListCache(ctx, cfg.Cache)
	if err != nil {
		// the list cache is an optimization; serve uncached rather than fail
		log.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("file list cache unavailable, continuing without it")
		listCache = cache.NewNoopFileListCache()
	}
	a.Cache = listCache

	a.Uploads = service.NewUploadService(a.Store, cfg.Server.MaxUploadBytes)
	a.Files = service.NewFileService(a.Repo, a.Store, a.Cache, service.FileServiceOptions{
		Policy:             domain.ParseTransitionPolicy(cfg.Files.TransitionPolicy),
		DeleteObjects:      cfg.Files.DeleteObjects,
		RequireStoragePath: cfg.Files.RequireStoragePath,
	})
	a.Query = service.NewQueryService(a.Repo, a.Cache)
	a.Runner = workflow.NewRunner(a.Uploads, a.Files)

	if cfg.Drive.Enabled() && !opts.SkipDrive {
		source, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init drive: %w", err)
		}
		a.Drive = drive.NewImporter(source, a.Uploads, a.Runner, cfg.Drive.MaxBytes)
	}

	log.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("storage_driver", cfg.Storage.Driver).
		Bool("cache", cfg.Cache.Enabled).
		Bool("drive", a.Drive != nil).
		Str("policy", cfg.Files.TransitionPolicy).
		Msg("app initialized")
	return a, nil
}

func (a *App) openRepository(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.Driver == "memory" {
		log.Warn().Msg("using in-memory metadata store; records are lost on restart")
		a.Repo = memory.NewFileRepository()
		return nil
	}

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.MigrateURL()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := postgres.NewDB(ctx, &cfg)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	a.db = db
	a.Repo = postgres.NewFileRepository(db)
	return nil
}

// NewObjectStorage picks the object store adapter named by cfg.Driver.
func NewObjectStorage(cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Driver {
	case "", "http":
		store, err := storage.NewHTTPStore(storage.HTTPConfig{
			URL:        cfg.URL,
			Credential: cfg.Credential,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "minio":
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.URL,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		log.Warn().Msg("using in-memory object store; objects are lost on restart")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// Router builds the HTTP handler, adding bearer auth when configured.
func (a *App) Router(ctx context.Context) (*gin.Engine, error) {
	opts := api.RouterOptions{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		BasePath:       a.Config.Server.BasePath,
	}
	if a.Config.Auth.Enabled() {
		auth, err := middleware.NewJWTAuth(ctx, a.Config.Auth)
		if err != nil {
			return nil, err
		}
		opts.Auth = auth.Middleware()
	}

	return api.NewRouter(&api.Services{
		QueryService:  a.Query,
		FileService:   a.Files,
		UploadService: a.Uploads,
		DriveImporter: a.Drive,
		Health:        a.Repo,
	}, opts), nil
}

func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			log.Warn().Err(err).Msg("close file list cache")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}
}
