package config

import (
	"go.uber.org/fx"

	"github.com/fluxgate/fluxgate/pkg/govern/adapter/storage"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/processor"
	inframetrics "github.com/fluxgate/fluxgate/pkg/govern/infrastructure/metrics"
	sqlrepo "github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/sql"
	"github.com/fluxgate/fluxgate/pkg/govern/ingestion"
)

// Module provides the typed sub-configs the components consume. The
// application supplies *Config itself, loaded ahead of graph construction.
var Module = fx.Options(
	fx.Provide(
		func(cfg *Config) sqlrepo.DatabaseConfig { return cfg.Fluxgate.Database },
		func(cfg *Config) storage.Config { return cfg.Fluxgate.Storage },
		func(cfg *Config) inframetrics.TracingConfig { return cfg.Fluxgate.Tracing },
		func(cfg *Config) processor.Config {
			return processor.Config{
				Workers:   cfg.Fluxgate.Processor.Workers,
				QueueSize: cfg.Fluxgate.Processor.QueueSize,
			}
		},
		func(cfg *Config) ingestion.Config {
			return ingestion.Config{
				DefaultRequiresApproval: cfg.Fluxgate.Ingestion.DefaultRequiresApproval,
			}
		},
	),
)
