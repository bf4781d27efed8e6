package sql

import (
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// DataSourceEntity is a schema model used for persistence.
type DataSourceEntity struct {
	ID               string `gorm:"primaryKey"`
	Name             string
	Description      string
	SourceType       string
	ConnectionConfig model.Metadata
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (DataSourceEntity) TableName() string {
	return "govern_data_source"
}

// ProcessingJobEntity is a schema model used for persistence. The output
// result is stored as serialized JSON.
type ProcessingJobEntity struct {
	ID                  string `gorm:"primaryKey"`
	Name                string
	Description         string
	SourceID            string `gorm:"index"`
	Status              string `gorm:"index"`
	Stage               string
	TransformationRules model.RuleList
	InputData           model.Payload
	OutputData          *string
	RequiresApproval    bool
	CreatedBy           string
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	ErrorMessage        string
}

func (ProcessingJobEntity) TableName() string {
	return "govern_processing_job"
}

// DataExceptionEntity is a schema model used for persistence.
type DataExceptionEntity struct {
	ID              string `gorm:"primaryKey"`
	JobID           string `gorm:"index"`
	ExceptionType   string
	Message         string
	Severity        string
	Metadata        model.Metadata
	StackTrace      string
	Resolved        bool
	ResolvedBy      string
	ResolutionNotes string
	Timestamp       time.Time
	ResolvedAt      *time.Time
}

func (DataExceptionEntity) TableName() string {
	return "govern_data_exception"
}

// WorkflowApprovalEntity is a schema model used for persistence. A partial
// unique index on (job_id) where state = 'PENDING' backs the
// one-pending-approval-per-job constraint.
type WorkflowApprovalEntity struct {
	ID           string `gorm:"primaryKey"`
	JobID        string `gorm:"index"`
	ApprovalType string
	State        string
	SubmittedBy  string
	ApprovedBy   string
	Comments     string
	SubmittedAt  time.Time
	ApprovedAt   *time.Time
}

func (WorkflowApprovalEntity) TableName() string {
	return "govern_workflow_approval"
}

// LineageEventEntity is a schema model used for persistence. The insertion
// sequence is the auto-incremented primary key; schemas and transformation
// details are stored as serialized JSON.
type LineageEventEntity struct {
	Sequence              int64  `gorm:"primaryKey;autoIncrement"`
	ID                    string `gorm:"uniqueIndex"`
	JobID                 string `gorm:"index"`
	SourceID              string `gorm:"index"`
	EventType             string
	Timestamp             time.Time
	Metadata              model.Metadata
	InputSchema           *string
	OutputSchema          *string
	TransformationDetails *string
}

func (LineageEventEntity) TableName() string {
	return "govern_lineage_event"
}
