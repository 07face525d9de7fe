package app

import (
	"context"
	"fmt"

	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/repository"
	"github.com/timmy/facecheck/internal/service"
	"github.com/timmy/facecheck/internal/storage"
	"gorm.io/gorm"
)

// App wires the database, collaborators and the integrity service shared by
// the API server and the CLI.
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *gorm.DB
	Service   *service.IntegrityService
	Settings  *service.SettingsProvider
	Rebuilder integrity.IndexRebuilder

	closers []func() error
}

// New builds an App from cfg.
// Parameters:
//   - ctx: context for startup checks (bucket and collection).
//   - cfg: loaded configuration.
//   - log: application logger.
// Returns:
//   - *App: wired application; call Close when done.
//   - error: non-nil if a required dependency cannot be initialized.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	a := &App{Config: cfg, Logger: log, DB: db}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	ml := service.NewMLClient(cfg.ML)
	var rebuilder integrity.IndexRebuilder = ml
	if cfg.Index.Provider == config.IndexProviderQdrant {
		qdrantRepo, err := repository.NewQdrantRepository(&repository.QdrantConnectionConfig{
			Host:            cfg.Index.Qdrant.Host,
			Port:            cfg.Index.Qdrant.Port,
			Collection:      cfg.Index.Qdrant.Collection,
			APIKey:          cfg.Index.Qdrant.APIKey,
			UseTLS:          cfg.Index.Qdrant.UseTLS,
			VectorDimension: cfg.Index.Qdrant.Dimension,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize qdrant: %w", err)
		}
		a.closers = append(a.closers, qdrantRepo.Close)
		if err := qdrantRepo.EnsureCollection(ctx); err != nil {
			log.WithError(err).Warn("Qdrant collection check failed, rebuilds will retry")
		}
		rebuilder = service.NewQdrantIndexRebuilder(
			repository.NewDescriptorRepository(db), qdrantRepo, cfg.Integrity.PageSize, log)
	}
	a.Rebuilder = rebuilder

	var archive service.ReportArchiver
	if cfg.Storage.Enabled {
		objects, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure storage bucket: %w", err)
		}
		archive = storage.NewReportArchive(objects, cfg.Storage.Prefix)
	}

	a.Settings = service.NewSettingsProvider(
		repository.NewSettingRepository(db), service.ThresholdsFromConfig(cfg.Integrity), log)
	engine := integrity.NewEngine(repository.NewStore(db), a.Settings, ml, rebuilder)
	a.Service = service.NewIntegrityService(engine, repository.NewScanRunRepository(db), archive, a.Settings, log)
	a.Service.SetReportRetention(cfg.Storage.RetainReports)

	log.WithFields(logger.Fields{
		"database":       cfg.Database.Driver,
		"index_provider": cfg.Index.Provider,
		"archive":        cfg.Storage.Enabled,
	}).Info("Application initialized")
	return a, nil
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
