package repository

import (
	"context"
	"errors"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// ErrDataSourceNotFound is the error returned when a DataSource is not found.
var ErrDataSourceNotFound = errors.New("data source not found")

// DataSourceRepository persists configured data sources.
type DataSourceRepository interface {
	// SaveDataSource persists a new DataSource.
	SaveDataSource(ctx context.Context, source *model.DataSource) error

	// UpdateDataSource updates the state of an existing DataSource.
	UpdateDataSource(ctx context.Context, source *model.DataSource) error

	// DeleteDataSource removes the DataSource with the given id.
	DeleteDataSource(ctx context.Context, id string) error

	// FindDataSourceByID finds a DataSource by its id.
	FindDataSourceByID(ctx context.Context, id string) (*model.DataSource, error)

	// ListDataSources returns all configured data sources.
	ListDataSources(ctx context.Context) ([]*model.DataSource, error)
}
