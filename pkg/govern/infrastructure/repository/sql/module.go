package sql

import (
	"go.uber.org/fx"

	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
)

// Module provides the SQL store under the aggregate Store interface and
// under each per-aggregate interface the services depend on. The database
// handle and migrations are wired by the application.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewSQLStore,
			fx.As(new(repository.Store)),
			fx.As(new(repository.DataSourceRepository)),
			fx.As(new(repository.JobRepository)),
			fx.As(new(repository.ExceptionRepository)),
			fx.As(new(repository.ApprovalRepository)),
			fx.As(new(repository.LineageRepository)),
		),
	),
)
