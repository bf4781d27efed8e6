package model

import (
	"fmt"
	"time"
)

// ApprovalType identifies what kind of promotion an approval gates.
type ApprovalType string

const (
	ApprovalDataPromotion ApprovalType = "DATA_PROMOTION"
	ApprovalSchemaChange  ApprovalType = "SCHEMA_CHANGE"
	ApprovalJobExecution  ApprovalType = "JOB_EXECUTION"
)

// String returns the string representation of the ApprovalType.
func (t ApprovalType) String() string {
	return string(t)
}

// IsValid checks whether the ApprovalType is one of the known kinds.
func (t ApprovalType) IsValid() bool {
	switch t {
	case ApprovalDataPromotion, ApprovalSchemaChange, ApprovalJobExecution:
		return true
	default:
		return false
	}
}

// ApprovalState represents the state of a workflow approval. PENDING is the
// only non-terminal state.
type ApprovalState string

const (
	ApprovalPending   ApprovalState = "PENDING"
	ApprovalApproved  ApprovalState = "APPROVED"
	ApprovalRejected  ApprovalState = "REJECTED"
	ApprovalCancelled ApprovalState = "CANCELLED"
)

// String returns the string representation of the ApprovalState.
func (s ApprovalState) String() string {
	return string(s)
}

// IsTerminal checks if the ApprovalState is terminal.
func (s ApprovalState) IsTerminal() bool {
	return s != ApprovalPending
}

// WorkflowApproval is a human-in-the-loop gate on job promotion. At most one
// PENDING approval may exist per job at a time.
type WorkflowApproval struct {
	ID           string
	JobID        string
	ApprovalType ApprovalType
	State        ApprovalState
	SubmittedBy  string
	ApprovedBy   string
	Comments     string
	SubmittedAt  time.Time
	ApprovedAt   *time.Time
}

// NewWorkflowApproval creates a new approval in the PENDING state.
func NewWorkflowApproval(jobID string, approvalType ApprovalType, submittedBy, comments string) *WorkflowApproval {
	return &WorkflowApproval{
		ID:           NewID(),
		JobID:        jobID,
		ApprovalType: approvalType,
		State:        ApprovalPending,
		SubmittedBy:  submittedBy,
		Comments:     comments,
		SubmittedAt:  time.Now(),
	}
}

// decide performs the one-way PENDING -> terminal transition.
func (a *WorkflowApproval) decide(target ApprovalState, decidedBy, comments string) error {
	if a.State != ApprovalPending {
		return fmt.Errorf("WorkflowApproval (ID: %s): invalid state transition: %s -> %s", a.ID, a.State, target)
	}
	now := time.Now()
	a.State = target
	a.ApprovedBy = decidedBy
	a.ApprovedAt = &now
	if comments != "" {
		if a.Comments != "" {
			a.Comments = a.Comments + "\n\n" + comments
		} else {
			a.Comments = comments
		}
	}
	return nil
}

// MarkApproved transitions the approval to APPROVED.
func (a *WorkflowApproval) MarkApproved(approvedBy, comments string) error {
	return a.decide(ApprovalApproved, approvedBy, comments)
}

// MarkRejected transitions the approval to REJECTED.
func (a *WorkflowApproval) MarkRejected(rejectedBy, comments string) error {
	return a.decide(ApprovalRejected, rejectedBy, comments)
}

// MarkCancelled transitions the approval to CANCELLED.
func (a *WorkflowApproval) MarkCancelled(cancelledBy, comments string) error {
	return a.decide(ApprovalCancelled, cancelledBy, comments)
}
