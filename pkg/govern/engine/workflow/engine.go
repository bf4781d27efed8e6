package workflow

import (
	"context"
	"errors"
	"sync"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

const moduleName = "workflow_engine"

// Engine is the approval state machine gating promotion of a job's output.
// At most one PENDING approval exists per job; the backing store enforces
// the constraint so two racing submits cannot both succeed.
type Engine struct {
	repo     repository.ApprovalRepository
	recorder *lineage.Recorder

	mu      sync.Mutex
	waiters map[string][]chan model.ApprovalState // approval id -> waiters
}

// NewEngine creates a workflow engine.
func NewEngine(repo repository.ApprovalRepository, recorder *lineage.Recorder) *Engine {
	return &Engine{
		repo:     repo,
		recorder: recorder,
		waiters:  make(map[string][]chan model.ApprovalState),
	}
}

// Submit opens a PENDING approval for the job and records the
// approval_submitted lineage event. A job that already has a PENDING
// approval rejects the second submit with a duplicate-approval error.
func (e *Engine) Submit(ctx context.Context, jobID string, approvalType model.ApprovalType, submittedBy, comments string) (*model.WorkflowApproval, error) {
	if !approvalType.IsValid() {
		return nil, exception.Newf(exception.KindValidation, moduleName, "invalid approval type %q", approvalType)
	}

	approval := model.NewWorkflowApproval(jobID, approvalType, submittedBy, comments)
	if err := e.repo.SaveApproval(ctx, approval); err != nil {
		if errors.Is(err, repository.ErrPendingApprovalExists) {
			return nil, exception.Newf(exception.KindDuplicateApproval, moduleName, "a pending approval already exists for job %s", jobID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to save approval", err)
	}

	metadata := model.Metadata{
		"approval_id":   approval.ID,
		"approval_type": approvalType.String(),
		"submitted_by":  submittedBy,
	}
	if err := e.recorder.RecordApproval(ctx, jobID, model.EventApprovalSubmitted, metadata); err != nil {
		return nil, err
	}

	logger.Infof("Approval submitted (ID: %s, job: %s, type: %s).", approval.ID, jobID, approvalType)
	return approval, nil
}

// Approve moves a PENDING approval to APPROVED and wakes any run waiting on
// the decision.
func (e *Engine) Approve(ctx context.Context, approvalID, approvedBy, comments string) (*model.WorkflowApproval, error) {
	return e.decide(ctx, approvalID, model.ApprovalApproved, approvedBy, comments)
}

// Reject moves a PENDING approval to REJECTED and wakes any run waiting on
// the decision.
func (e *Engine) Reject(ctx context.Context, approvalID, rejectedBy, comments string) (*model.WorkflowApproval, error) {
	return e.decide(ctx, approvalID, model.ApprovalRejected, rejectedBy, comments)
}

// Cancel withdraws a PENDING approval without a verdict on the data.
func (e *Engine) Cancel(ctx context.Context, approvalID, cancelledBy, comments string) (*model.WorkflowApproval, error) {
	return e.decide(ctx, approvalID, model.ApprovalCancelled, cancelledBy, comments)
}

func (e *Engine) decide(ctx context.Context, approvalID string, target model.ApprovalState, decidedBy, comments string) (*model.WorkflowApproval, error) {
	approval, err := e.repo.FindApprovalByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, repository.ErrApprovalNotFound) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "approval not found (ID: %s)", approvalID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load approval", err)
	}

	var transitionErr error
	switch target {
	case model.ApprovalApproved:
		transitionErr = approval.MarkApproved(decidedBy, comments)
	case model.ApprovalRejected:
		transitionErr = approval.MarkRejected(decidedBy, comments)
	case model.ApprovalCancelled:
		transitionErr = approval.MarkCancelled(decidedBy, comments)
	default:
		return nil, exception.Newf(exception.KindValidation, moduleName, "invalid target state %q", target)
	}
	if transitionErr != nil {
		return nil, exception.New(exception.KindInvalidState, moduleName, transitionErr.Error(), nil)
	}

	if err := e.repo.UpdateApproval(ctx, approval); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to persist approval decision", err)
	}

	if eventType, recorded := approvalEventType(target); recorded {
		metadata := model.Metadata{
			"approval_id": approval.ID,
			"decided_by":  decidedBy,
		}
		if err := e.recorder.RecordApproval(ctx, approval.JobID, eventType, metadata); err != nil {
			return nil, err
		}
	}

	e.notify(approvalID, target)
	logger.Infof("Approval decided (ID: %s, job: %s, state: %s, by: %s).", approval.ID, approval.JobID, target, decidedBy)
	return approval, nil
}

// approvalEventType maps a terminal approval state to its lineage event.
// Cancellation leaves no lineage trail.
func approvalEventType(state model.ApprovalState) (model.LineageEventType, bool) {
	switch state {
	case model.ApprovalApproved:
		return model.EventApprovalApproved, true
	case model.ApprovalRejected:
		return model.EventApprovalRejected, true
	default:
		return "", false
	}
}

// AwaitDecision blocks until the approval reaches a terminal state or the
// context is done. A decision that already happened is returned immediately.
func (e *Engine) AwaitDecision(ctx context.Context, approvalID string) (model.ApprovalState, error) {
	ch := make(chan model.ApprovalState, 1)

	e.mu.Lock()
	e.waiters[approvalID] = append(e.waiters[approvalID], ch)
	e.mu.Unlock()
	defer e.forget(approvalID, ch)

	// The decision may have landed before the waiter registered.
	approval, err := e.repo.FindApprovalByID(ctx, approvalID)
	if err != nil {
		return "", exception.New(exception.KindInternal, moduleName, "failed to load approval while awaiting decision", err)
	}
	if approval.State.IsTerminal() {
		return approval.State, nil
	}

	select {
	case state := <-ch:
		return state, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// FindByID returns an approval by id.
func (e *Engine) FindByID(ctx context.Context, approvalID string) (*model.WorkflowApproval, error) {
	approval, err := e.repo.FindApprovalByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, repository.ErrApprovalNotFound) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "approval not found (ID: %s)", approvalID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load approval", err)
	}
	return approval, nil
}

// PendingForJob returns the job's PENDING approval, if one exists.
func (e *Engine) PendingForJob(ctx context.Context, jobID string) (*model.WorkflowApproval, error) {
	approval, err := e.repo.FindPendingApprovalByJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrApprovalNotFound) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "no pending approval for job %s", jobID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load pending approval", err)
	}
	return approval, nil
}

// List returns approvals, optionally narrowed to a state.
func (e *Engine) List(ctx context.Context, state model.ApprovalState) ([]*model.WorkflowApproval, error) {
	return e.repo.ListApprovals(ctx, state)
}

func (e *Engine) notify(approvalID string, state model.ApprovalState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.waiters[approvalID] {
		select {
		case ch <- state:
		default:
		}
	}
	delete(e.waiters, approvalID)
}

func (e *Engine) forget(approvalID string, target chan model.ApprovalState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	remaining := e.waiters[approvalID][:0]
	for _, ch := range e.waiters[approvalID] {
		if ch != target {
			remaining = append(remaining, ch)
		}
	}
	if len(remaining) == 0 {
		delete(e.waiters, approvalID)
	} else {
		e.waiters[approvalID] = remaining
	}
}
