package repository

import (
	"context"
	"errors"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// ErrApprovalNotFound is the error returned when a WorkflowApproval is not found.
var ErrApprovalNotFound = errors.New("workflow approval not found")

// ErrPendingApprovalExists is returned when a save would violate the
// one-PENDING-approval-per-job constraint. The backing store enforces the
// single-writer semantics; two racing submits must not both succeed.
var ErrPendingApprovalExists = errors.New("a pending approval already exists for this job")

// ApprovalRepository persists workflow approvals.
type ApprovalRepository interface {
	// SaveApproval persists a new WorkflowApproval. It fails with
	// ErrPendingApprovalExists when the job already has a PENDING approval.
	SaveApproval(ctx context.Context, approval *model.WorkflowApproval) error

	// UpdateApproval updates the state of an existing WorkflowApproval.
	UpdateApproval(ctx context.Context, approval *model.WorkflowApproval) error

	// FindApprovalByID finds a WorkflowApproval by its id.
	FindApprovalByID(ctx context.Context, id string) (*model.WorkflowApproval, error)

	// FindPendingApprovalByJob finds the PENDING approval for the given job,
	// if one exists.
	FindPendingApprovalByJob(ctx context.Context, jobID string) (*model.WorkflowApproval, error)

	// ListApprovals returns approvals, optionally narrowed to a state,
	// newest first. An empty state lists everything.
	ListApprovals(ctx context.Context, state model.ApprovalState) ([]*model.WorkflowApproval, error)
}
