package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
)

func cloneException(exc *model.DataException) *model.DataException {
	cloned := *exc
	cloned.Metadata = exc.Metadata.Copy()
	return &cloned
}

// SaveException persists a new DataException.
func (s *InMemoryStore) SaveException(ctx context.Context, exc *model.DataException) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exceptions[exc.ID]; exists {
		return fmt.Errorf("DataException with ID %s already exists", exc.ID)
	}
	s.exceptions[exc.ID] = cloneException(exc)
	return nil
}

// UpdateException updates an existing DataException.
func (s *InMemoryStore) UpdateException(ctx context.Context, exc *model.DataException) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exceptions[exc.ID]; !exists {
		return repository.ErrExceptionNotFound
	}
	s.exceptions[exc.ID] = cloneException(exc)
	return nil
}

// FindExceptionByID finds a DataException by its id.
func (s *InMemoryStore) FindExceptionByID(ctx context.Context, id string) (*model.DataException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exc, ok := s.exceptions[id]
	if !ok {
		return nil, repository.ErrExceptionNotFound
	}
	return cloneException(exc), nil
}

// ListExceptions returns exceptions matching the filter, newest first.
func (s *InMemoryStore) ListExceptions(ctx context.Context, filter repository.ExceptionFilter) ([]*model.DataException, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*model.DataException, 0)
	for _, exc := range s.exceptions {
		if filter.Resolved != nil && exc.Resolved != *filter.Resolved {
			continue
		}
		if filter.JobID != "" && exc.JobID != filter.JobID {
			continue
		}
		if filter.Severity != "" && exc.Severity != filter.Severity {
			continue
		}
		matches = append(matches, cloneException(exc))
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	return matches, nil
}
