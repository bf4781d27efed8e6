package model

import (
	"fmt"
	"time"

	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal checks if the JobStatus represents a terminal state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStage names the stage a RUNNING job is currently in. It is persisted so
// a job suspended at the approval gate survives a restart of the processor.
type JobStage string

const (
	StageTransform        JobStage = "transform"
	StageAwaitingApproval JobStage = "awaiting_approval"
	StageFinalize         JobStage = "finalize"
)

// Result is the output a completed job carries: the transformed payload plus
// a summary of what the pipeline did.
type Result struct {
	ProcessedData Payload                `json:"processed_data"`
	RowCount      int                    `json:"row_count"`
	OriginalCount int                    `json:"original_row_count"`
	Summary       map[string]interface{} `json:"transformation_summary,omitempty"`
}

// ProcessingJob is the central unit of work. It owns its rule list and error
// message; exceptions, approvals, and lineage events reference it by id only.
type ProcessingJob struct {
	ID                  string
	Name                string
	Description         string
	SourceID            string // empty when the job has no configured source
	Status              JobStatus
	Stage               JobStage
	TransformationRules RuleList
	InputData           Payload
	OutputData          *Result
	RequiresApproval    bool
	CreatedBy           string
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	ErrorMessage        string
}

// NewProcessingJob creates a new job in PENDING with an empty rule list.
func NewProcessingJob(name, description, sourceID string, input Payload, createdBy string) *ProcessingJob {
	return &ProcessingJob{
		ID:                  NewID(),
		Name:                name,
		Description:         description,
		SourceID:            sourceID,
		Status:              JobStatusPending,
		TransformationRules: make(RuleList, 0),
		InputData:           input,
		CreatedBy:           createdBy,
		CreatedAt:           time.Now(),
	}
}

// isValidJobTransition checks if the state transition for a ProcessingJob is
// valid. Transitions are monotonic: a terminal state is never left except
// FAILED -> RUNNING via an explicit retry.
func isValidJobTransition(current, next JobStatus) bool {
	switch current {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	case JobStatusFailed:
		// Permitted only via an explicit retry, which re-enters the pipeline
		// from the beginning.
		return next == JobStatusRunning
	case JobStatusCompleted, JobStatusCancelled:
		return false
	default:
		return false
	}
}

// TransitionTo safely transitions the state of the job. Fields other than
// Status must be set separately by the caller.
func (j *ProcessingJob) TransitionTo(newStatus JobStatus) error {
	if !isValidJobTransition(j.Status, newStatus) {
		return fmt.Errorf("ProcessingJob (ID: %s): invalid state transition: %s -> %s", j.ID, j.Status, newStatus)
	}
	j.Status = newStatus
	return nil
}

// MarkAsRunning transitions the job to RUNNING and stamps started_at.
func (j *ProcessingJob) MarkAsRunning() error {
	if err := j.TransitionTo(JobStatusRunning); err != nil {
		return err
	}
	now := time.Now()
	j.StartedAt = &now
	j.Stage = StageTransform
	return nil
}

// MarkAsCompleted transitions the job to COMPLETED, stamps completed_at and
// stores the result.
func (j *ProcessingJob) MarkAsCompleted(result *Result) {
	if err := j.TransitionTo(JobStatusCompleted); err != nil {
		logger.Warnf("Could not update ProcessingJob (ID: %s) status to COMPLETED: %v", j.ID, err)
		j.Status = JobStatusCompleted
	}
	now := time.Now()
	j.CompletedAt = &now
	j.OutputData = result
	j.Stage = ""
}

// MarkAsFailed transitions the job to FAILED, stamps completed_at and
// records the error message.
func (j *ProcessingJob) MarkAsFailed(err error) {
	if terr := j.TransitionTo(JobStatusFailed); terr != nil {
		logger.Warnf("Could not update ProcessingJob (ID: %s) status to FAILED: %v", j.ID, terr)
		j.Status = JobStatusFailed
	}
	now := time.Now()
	j.CompletedAt = &now
	if err != nil {
		j.ErrorMessage = err.Error()
	}
	j.Stage = ""
}

// MarkAsCancelled transitions the job to CANCELLED and stamps completed_at.
func (j *ProcessingJob) MarkAsCancelled() error {
	if err := j.TransitionTo(JobStatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	j.CompletedAt = &now
	j.Stage = ""
	return nil
}

// ResetForRetry prepares a FAILED job for a fresh run: the job id is reused,
// the error message is cleared, and all run-scoped fields are reset so the
// pipeline re-applies its rules from scratch.
func (j *ProcessingJob) ResetForRetry() error {
	if j.Status != JobStatusFailed {
		return fmt.Errorf("ProcessingJob (ID: %s): retry accepted only in FAILED state (current: %s)", j.ID, j.Status)
	}
	if err := j.TransitionTo(JobStatusRunning); err != nil {
		return err
	}
	now := time.Now()
	j.StartedAt = &now
	j.CompletedAt = nil
	j.ErrorMessage = ""
	j.OutputData = nil
	j.Stage = StageTransform
	return nil
}
