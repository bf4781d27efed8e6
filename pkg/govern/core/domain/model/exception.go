package model

import (
	"fmt"
	"time"
)

// ExceptionSeverity grades a captured failure.
type ExceptionSeverity string

const (
	SeverityLow      ExceptionSeverity = "LOW"
	SeverityMedium   ExceptionSeverity = "MEDIUM"
	SeverityHigh     ExceptionSeverity = "HIGH"
	SeverityCritical ExceptionSeverity = "CRITICAL"
)

// String returns the string representation of the ExceptionSeverity.
func (s ExceptionSeverity) String() string {
	return string(s)
}

// IsValid checks whether the severity is one of the known grades.
func (s ExceptionSeverity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// DataException is a recorded processing failure, distinct from a
// language-level error, tracked through a resolution lifecycle.
type DataException struct {
	ID              string
	JobID           string // empty when the failure is not tied to a job
	ExceptionType   string
	Message         string
	Severity        ExceptionSeverity
	Metadata        Metadata
	StackTrace      string
	Resolved        bool
	ResolvedBy      string
	ResolutionNotes string
	Timestamp       time.Time
	ResolvedAt      *time.Time
}

// NewDataException creates a new unresolved exception record.
func NewDataException(jobID, exceptionType, message string, severity ExceptionSeverity, metadata Metadata) *DataException {
	if metadata == nil {
		metadata = NewMetadata()
	}
	return &DataException{
		ID:            NewID(),
		JobID:         jobID,
		ExceptionType: exceptionType,
		Message:       message,
		Severity:      severity,
		Metadata:      metadata,
		Timestamp:     time.Now(),
	}
}

// MarkResolved performs the one-way resolved transition, setting resolver,
// notes and resolved_at together. Resolving twice is rejected so the first
// resolution is never overwritten.
func (e *DataException) MarkResolved(resolvedBy, notes string) error {
	if e.Resolved {
		return fmt.Errorf("DataException (ID: %s): already resolved by %s", e.ID, e.ResolvedBy)
	}
	now := time.Now()
	e.Resolved = true
	e.ResolvedBy = resolvedBy
	e.ResolutionNotes = notes
	e.ResolvedAt = &now
	return nil
}
