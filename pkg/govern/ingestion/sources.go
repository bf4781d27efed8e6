package ingestion

import (
	"context"
	"errors"
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// SourceInput carries the caller-editable fields of a data source.
type SourceInput struct {
	Name             string
	Description      string
	SourceType       model.SourceType
	ConnectionConfig model.Metadata
	IsActive         bool
}

// CreateSource registers a new data source. An active source is validated
// against its type's connection_config schema before it is persisted.
func (g *Gateway) CreateSource(ctx context.Context, input SourceInput) (*model.DataSource, error) {
	if input.Name == "" {
		return nil, exception.New(exception.KindValidation, moduleName, "source name is required", nil)
	}
	if !input.SourceType.IsValid() {
		return nil, exception.Newf(exception.KindValidation, moduleName, "invalid source type %q", input.SourceType)
	}

	source := model.NewDataSource(input.Name, input.Description, input.SourceType, input.ConnectionConfig)
	if input.IsActive {
		if err := source.Activate(); err != nil {
			return nil, exception.New(exception.KindValidation, moduleName, "connection_config is invalid", err)
		}
	}

	if err := g.sources.SaveDataSource(ctx, source); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to persist data source", err)
	}
	logger.Infof("Data source created (ID: %s, name: %s, type: %s, active: %t).", source.ID, source.Name, source.SourceType, source.IsActive)
	return source, nil
}

// UpdateSource edits an existing data source. Activation revalidates the
// connection_config against the (possibly changed) source type.
func (g *Gateway) UpdateSource(ctx context.Context, sourceID string, input SourceInput) (*model.DataSource, error) {
	source, err := g.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		source.Name = input.Name
	}
	source.Description = input.Description
	if input.SourceType != "" {
		if !input.SourceType.IsValid() {
			return nil, exception.Newf(exception.KindValidation, moduleName, "invalid source type %q", input.SourceType)
		}
		source.SourceType = input.SourceType
	}
	if input.ConnectionConfig != nil {
		source.ConnectionConfig = input.ConnectionConfig.Copy()
	}

	if input.IsActive {
		if err := source.Activate(); err != nil {
			return nil, exception.New(exception.KindValidation, moduleName, "connection_config is invalid", err)
		}
	} else {
		source.Deactivate()
	}
	source.UpdatedAt = time.Now()

	if err := g.sources.UpdateDataSource(ctx, source); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to persist data source", err)
	}
	logger.Infof("Data source updated (ID: %s, active: %t).", source.ID, source.IsActive)
	return source, nil
}

// DeleteSource removes a data source. Jobs that reference it keep their
// source id; lineage is never rewritten.
func (g *Gateway) DeleteSource(ctx context.Context, sourceID string) error {
	if err := g.sources.DeleteDataSource(ctx, sourceID); err != nil {
		if errors.Is(err, repository.ErrDataSourceNotFound) {
			return exception.Newf(exception.KindSourceNotFound, moduleName, "data source not found (ID: %s)", sourceID)
		}
		return exception.New(exception.KindInternal, moduleName, "failed to delete data source", err)
	}
	logger.Infof("Data source deleted (ID: %s).", sourceID)
	return nil
}

// GetSource returns a data source by id.
func (g *Gateway) GetSource(ctx context.Context, sourceID string) (*model.DataSource, error) {
	source, err := g.sources.FindDataSourceByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrDataSourceNotFound) {
			return nil, exception.Newf(exception.KindSourceNotFound, moduleName, "data source not found (ID: %s)", sourceID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load data source", err)
	}
	return source, nil
}

// ListSources returns all configured data sources.
func (g *Gateway) ListSources(ctx context.Context) ([]*model.DataSource, error) {
	return g.sources.ListDataSources(ctx)
}
