package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
)

// SaveDataSource persists a new DataSource. It returns an error if a source
// with the same id already exists.
func (s *InMemoryStore) SaveDataSource(ctx context.Context, source *model.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[source.ID]; exists {
		return fmt.Errorf("DataSource with ID %s already exists", source.ID)
	}
	cloned := *source
	cloned.ConnectionConfig = source.ConnectionConfig.Copy()
	s.sources[source.ID] = &cloned
	return nil
}

// UpdateDataSource updates an existing DataSource.
func (s *InMemoryStore) UpdateDataSource(ctx context.Context, source *model.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[source.ID]; !exists {
		return repository.ErrDataSourceNotFound
	}
	cloned := *source
	cloned.ConnectionConfig = source.ConnectionConfig.Copy()
	s.sources[source.ID] = &cloned
	return nil
}

// DeleteDataSource removes the DataSource with the given id.
func (s *InMemoryStore) DeleteDataSource(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sources[id]; !exists {
		return repository.ErrDataSourceNotFound
	}
	delete(s.sources, id)
	return nil
}

// FindDataSourceByID finds a DataSource by its id. The returned value is a
// copy to prevent external modification of internal state.
func (s *InMemoryStore) FindDataSourceByID(ctx context.Context, id string) (*model.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source, ok := s.sources[id]
	if !ok {
		return nil, repository.ErrDataSourceNotFound
	}
	cloned := *source
	cloned.ConnectionConfig = source.ConnectionConfig.Copy()
	return &cloned, nil
}

// ListDataSources returns all configured data sources ordered by creation time.
func (s *InMemoryStore) ListDataSources(ctx context.Context) ([]*model.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make([]*model.DataSource, 0, len(s.sources))
	for _, source := range s.sources {
		cloned := *source
		cloned.ConnectionConfig = source.ConnectionConfig.Copy()
		sources = append(sources, &cloned)
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].CreatedAt.Before(sources[j].CreatedAt)
	})
	return sources, nil
}
