package model

import (
	"time"
)

// LineageEventType identifies what kind of fact a lineage event records.
type LineageEventType string

const (
	EventIngestion         LineageEventType = "ingestion"
	EventTransformation    LineageEventType = "transformation"
	EventOutput            LineageEventType = "output"
	EventApprovalSubmitted LineageEventType = "approval_submitted"
	EventApprovalApproved  LineageEventType = "approval_approved"
	EventApprovalRejected  LineageEventType = "approval_rejected"
)

// String returns the string representation of the LineageEventType.
func (t LineageEventType) String() string {
	return string(t)
}

// TransformationDetails describes what a transformation stage did, recorded
// on the transformation lineage event.
type TransformationDetails struct {
	RulesApplied  []string     `json:"rules_applied"`
	SchemaChanges SchemaDiff   `json:"schema_changes"`
	RuleEffects   []RuleEffect `json:"rule_effects,omitempty"`
}

// RuleEffect summarizes the effect of a single rule application.
type RuleEffect struct {
	RuleType      string   `json:"rule_type"`
	RowsIn        int      `json:"rows_in"`
	RowsOut       int      `json:"rows_out"`
	FieldsTouched []string `json:"fields_touched,omitempty"`
}

// LineageEvent is an immutable fact recording a state change a job
// underwent. Events are never mutated or deleted; ordering within a job is
// by timestamp with the insertion sequence number breaking ties.
type LineageEvent struct {
	ID                    string
	JobID                 string
	SourceID              string // set on ingestion events when a source is known
	EventType             LineageEventType
	Timestamp             time.Time
	Sequence              int64 // assigned by the lineage store on append
	Metadata              Metadata
	InputSchema           *Schema
	OutputSchema          *Schema
	TransformationDetails *TransformationDetails
}

// NewLineageEvent creates a new lineage event for the given job.
func NewLineageEvent(jobID string, eventType LineageEventType, metadata Metadata) *LineageEvent {
	if metadata == nil {
		metadata = NewMetadata()
	}
	return &LineageEvent{
		ID:        NewID(),
		JobID:     jobID,
		EventType: eventType,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
