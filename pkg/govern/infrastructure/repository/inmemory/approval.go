package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
)

// SaveApproval persists a new WorkflowApproval. The single store mutex makes
// the one-PENDING-per-job check and the insert atomic, so of two racing
// submits exactly one observes ErrPendingApprovalExists.
func (s *InMemoryStore) SaveApproval(ctx context.Context, approval *model.WorkflowApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.approvals[approval.ID]; exists {
		return fmt.Errorf("WorkflowApproval with ID %s already exists", approval.ID)
	}
	if approval.State == model.ApprovalPending {
		for _, existing := range s.approvals {
			if existing.JobID == approval.JobID && existing.State == model.ApprovalPending {
				return repository.ErrPendingApprovalExists
			}
		}
	}
	cloned := *approval
	s.approvals[approval.ID] = &cloned
	return nil
}

// UpdateApproval updates an existing WorkflowApproval.
func (s *InMemoryStore) UpdateApproval(ctx context.Context, approval *model.WorkflowApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.approvals[approval.ID]; !exists {
		return repository.ErrApprovalNotFound
	}
	cloned := *approval
	s.approvals[approval.ID] = &cloned
	return nil
}

// FindApprovalByID finds a WorkflowApproval by its id.
func (s *InMemoryStore) FindApprovalByID(ctx context.Context, id string) (*model.WorkflowApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approval, ok := s.approvals[id]
	if !ok {
		return nil, repository.ErrApprovalNotFound
	}
	cloned := *approval
	return &cloned, nil
}

// FindPendingApprovalByJob finds the PENDING approval for the given job.
func (s *InMemoryStore) FindPendingApprovalByJob(ctx context.Context, jobID string) (*model.WorkflowApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, approval := range s.approvals {
		if approval.JobID == jobID && approval.State == model.ApprovalPending {
			cloned := *approval
			return &cloned, nil
		}
	}
	return nil, repository.ErrApprovalNotFound
}

// ListApprovals returns approvals, optionally narrowed to a state, newest first.
func (s *InMemoryStore) ListApprovals(ctx context.Context, state model.ApprovalState) ([]*model.WorkflowApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approvals := make([]*model.WorkflowApproval, 0)
	for _, approval := range s.approvals {
		if state != "" && approval.State != state {
			continue
		}
		cloned := *approval
		approvals = append(approvals, &cloned)
	}
	sort.Slice(approvals, func(i, j int) bool {
		return approvals[i].SubmittedAt.After(approvals[j].SubmittedAt)
	})
	return approvals, nil
}
