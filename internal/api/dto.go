package api

import (
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	serialization "github.com/fluxgate/fluxgate/pkg/govern/support/util/serialization"
)

// Response shapes. Domain structs stay free of transport tags; the mapping
// lives here.

type sourceResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	SourceType       string         `json:"source_type"`
	ConnectionConfig model.Metadata `json:"connection_config"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func toSourceResponse(s *model.DataSource) sourceResponse {
	return sourceResponse{
		ID:               s.ID,
		Name:             s.Name,
		Description:      s.Description,
		SourceType:       s.SourceType.String(),
		ConnectionConfig: model.Metadata(serialization.MaskedMap(s.ConnectionConfig)),
		IsActive:         s.IsActive,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

type jobResponse struct {
	ID                  string         `json:"id"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	SourceID            string         `json:"source_id,omitempty"`
	Status              string         `json:"status"`
	Stage               string         `json:"stage,omitempty"`
	TransformationRules model.RuleList `json:"transformation_rules"`
	RowCount            int            `json:"row_count"`
	OutputData          *model.Result  `json:"output_data,omitempty"`
	RequiresApproval    bool           `json:"requires_approval"`
	CreatedBy           string         `json:"created_by,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	StartedAt           *time.Time     `json:"started_at,omitempty"`
	CompletedAt         *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage        string         `json:"error_message,omitempty"`
}

func toJobResponse(j *model.ProcessingJob) jobResponse {
	return jobResponse{
		ID:                  j.ID,
		Name:                j.Name,
		Description:         j.Description,
		SourceID:            j.SourceID,
		Status:              j.Status.String(),
		Stage:               string(j.Stage),
		TransformationRules: j.TransformationRules,
		RowCount:            len(j.InputData),
		OutputData:          j.OutputData,
		RequiresApproval:    j.RequiresApproval,
		CreatedBy:           j.CreatedBy,
		CreatedAt:           j.CreatedAt,
		StartedAt:           j.StartedAt,
		CompletedAt:         j.CompletedAt,
		ErrorMessage:        j.ErrorMessage,
	}
}

type exceptionResponse struct {
	ID              string         `json:"id"`
	JobID           string         `json:"job_id,omitempty"`
	ExceptionType   string         `json:"exception_type"`
	Message         string         `json:"message"`
	Severity        string         `json:"severity"`
	Metadata        model.Metadata `json:"metadata,omitempty"`
	Resolved        bool           `json:"resolved"`
	ResolvedBy      string         `json:"resolved_by,omitempty"`
	ResolutionNotes string         `json:"resolution_notes,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

func toExceptionResponse(e *model.DataException) exceptionResponse {
	return exceptionResponse{
		ID:              e.ID,
		JobID:           e.JobID,
		ExceptionType:   e.ExceptionType,
		Message:         e.Message,
		Severity:        e.Severity.String(),
		Metadata:        e.Metadata,
		Resolved:        e.Resolved,
		ResolvedBy:      e.ResolvedBy,
		ResolutionNotes: e.ResolutionNotes,
		Timestamp:       e.Timestamp,
		ResolvedAt:      e.ResolvedAt,
	}
}

type approvalResponse struct {
	ID           string     `json:"id"`
	JobID        string     `json:"job_id"`
	ApprovalType string     `json:"approval_type"`
	State        string     `json:"state"`
	SubmittedBy  string     `json:"submitted_by"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	Comments     string     `json:"comments,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
}

func toApprovalResponse(a *model.WorkflowApproval) approvalResponse {
	return approvalResponse{
		ID:           a.ID,
		JobID:        a.JobID,
		ApprovalType: a.ApprovalType.String(),
		State:        a.State.String(),
		SubmittedBy:  a.SubmittedBy,
		ApprovedBy:   a.ApprovedBy,
		Comments:     a.Comments,
		SubmittedAt:  a.SubmittedAt,
		ApprovedAt:   a.ApprovedAt,
	}
}

// jobReference is the ack returned by the ingestion endpoints.
type jobReference struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	RowCount int    `json:"row_count"`
}

func toJobReference(j *model.ProcessingJob) jobReference {
	return jobReference{
		JobID:    j.ID,
		Status:   j.Status.String(),
		RowCount: len(j.InputData),
	}
}
