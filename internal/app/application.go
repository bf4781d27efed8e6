package app

import (
	"context"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/fluxgate/fluxgate/internal/api"
	"github.com/fluxgate/fluxgate/pkg/govern/adapter/storage"
	"github.com/fluxgate/fluxgate/pkg/govern/core/config"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/processor"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/rule"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/workflow"
	inframetrics "github.com/fluxgate/fluxgate/pkg/govern/infrastructure/metrics"
	"github.com/fluxgate/fluxgate/pkg/govern/infrastructure/migration"
	"github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/inmemory"
	sqlrepo "github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/sql"
	"github.com/fluxgate/fluxgate/pkg/govern/ingestion"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	"github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	"github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
	"github.com/fluxgate/fluxgate/pkg/govern/track"
)

const moduleName = "app"

// New assembles the application. Configuration is loaded before the graph
// is constructed because the store selection and database migrations depend
// on it.
func New(envFilePath string, embedded config.EmbeddedConfig) (*fx.App, error) {
	cfg, err := config.LoadConfig(envFilePath, embedded)
	if err != nil {
		return nil, err
	}
	config.ApplyLogging(cfg)

	storeOpts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}

	app := fx.New(
		logger.Module,
		fx.Supply(cfg),
		config.Module,
		storeOpts,
		inframetrics.Module,
		storage.Module,
		rule.Module,
		lineage.Module,
		track.Module,
		workflow.Module,
		processor.Module,
		ingestion.Module,
		api.Module,
	)
	if err := app.Err(); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to assemble application", err)
	}
	return app, nil
}

// storeOptions selects the persistence backend. The "memory" driver keeps
// everything in process; anything else opens a database, runs migrations
// and wires the SQL store.
func storeOptions(cfg *config.Config) (fx.Option, error) {
	dbCfg := cfg.Fluxgate.Database
	if dbCfg.Driver == "" || dbCfg.Driver == "memory" {
		logger.Infof("Using in-memory store")
		return inmemory.Module, nil
	}

	db, err := sqlrepo.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to access database handle", err)
	}
	if err := migration.Up(dbCfg.Driver, sqlDB); err != nil {
		return nil, err
	}
	logger.Infof("Using SQL store (driver: %s)", dbCfg.Driver)

	return fx.Options(
		fx.Supply(db),
		sqlrepo.Module,
		fx.Invoke(func(lc fx.Lifecycle, db *gorm.DB) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					h, err := db.DB()
					if err != nil {
						return err
					}
					return h.Close()
				},
			})
		}),
	), nil
}
