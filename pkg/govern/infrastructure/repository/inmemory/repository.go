// Package inmemory provides an in-memory implementation of the governance
// store. It holds all aggregates in maps within memory, suitable for testing
// and scenarios where persistence is not required.
package inmemory

import (
	"sync"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// InMemoryStore is an in-memory implementation of the repository.Store
// interface. All maps are protected by a single RWMutex.
type InMemoryStore struct {
	sources       map[string]*model.DataSource
	jobs          map[string]*model.ProcessingJob
	exceptions    map[string]*model.DataException
	approvals     map[string]*model.WorkflowApproval
	lineageEvents []*model.LineageEvent
	lineageSeq    int64
	mu            sync.RWMutex
}

// NewInMemoryStore creates and initializes a new instance of InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sources:       make(map[string]*model.DataSource),
		jobs:          make(map[string]*model.ProcessingJob),
		exceptions:    make(map[string]*model.DataException),
		approvals:     make(map[string]*model.WorkflowApproval),
		lineageEvents: make([]*model.LineageEvent, 0),
	}
}

// Close releases resources used by the store. The in-memory store holds no
// external resources, so this always returns nil.
func (s *InMemoryStore) Close() error {
	return nil
}
