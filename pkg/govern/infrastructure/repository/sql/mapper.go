package sql

import (
	"encoding/json"
	"fmt"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// --- Mapper functions ---

func marshalJSON(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize column: %w", err)
	}
	s := string(data)
	return &s, nil
}

func unmarshalJSON(raw *string, target interface{}) error {
	if raw == nil || *raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(*raw), target); err != nil {
		return fmt.Errorf("failed to deserialize column: %w", err)
	}
	return nil
}

func fromDomainDataSource(s *model.DataSource) *DataSourceEntity {
	if s == nil {
		return nil
	}
	return &DataSourceEntity{
		ID:               s.ID,
		Name:             s.Name,
		Description:      s.Description,
		SourceType:       s.SourceType.String(),
		ConnectionConfig: s.ConnectionConfig,
		IsActive:         s.IsActive,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func toDomainDataSource(entity *DataSourceEntity) *model.DataSource {
	if entity == nil {
		return nil
	}
	return &model.DataSource{
		ID:               entity.ID,
		Name:             entity.Name,
		Description:      entity.Description,
		SourceType:       model.SourceType(entity.SourceType),
		ConnectionConfig: entity.ConnectionConfig,
		IsActive:         entity.IsActive,
		CreatedAt:        entity.CreatedAt,
		UpdatedAt:        entity.UpdatedAt,
	}
}

func fromDomainJob(j *model.ProcessingJob) (*ProcessingJobEntity, error) {
	if j == nil {
		return nil, nil
	}
	var output *string
	if j.OutputData != nil {
		var err error
		output, err = marshalJSON(j.OutputData)
		if err != nil {
			return nil, err
		}
	}
	return &ProcessingJobEntity{
		ID:                  j.ID,
		Name:                j.Name,
		Description:         j.Description,
		SourceID:            j.SourceID,
		Status:              j.Status.String(),
		Stage:               string(j.Stage),
		TransformationRules: j.TransformationRules,
		InputData:           j.InputData,
		OutputData:          output,
		RequiresApproval:    j.RequiresApproval,
		CreatedBy:           j.CreatedBy,
		CreatedAt:           j.CreatedAt,
		StartedAt:           j.StartedAt,
		CompletedAt:         j.CompletedAt,
		ErrorMessage:        j.ErrorMessage,
	}, nil
}

func toDomainJob(entity *ProcessingJobEntity) (*model.ProcessingJob, error) {
	if entity == nil {
		return nil, nil
	}
	job := &model.ProcessingJob{
		ID:                  entity.ID,
		Name:                entity.Name,
		Description:         entity.Description,
		SourceID:            entity.SourceID,
		Status:              model.JobStatus(entity.Status),
		Stage:               model.JobStage(entity.Stage),
		TransformationRules: entity.TransformationRules,
		InputData:           entity.InputData,
		RequiresApproval:    entity.RequiresApproval,
		CreatedBy:           entity.CreatedBy,
		CreatedAt:           entity.CreatedAt,
		StartedAt:           entity.StartedAt,
		CompletedAt:         entity.CompletedAt,
		ErrorMessage:        entity.ErrorMessage,
	}
	if entity.OutputData != nil {
		var result model.Result
		if err := unmarshalJSON(entity.OutputData, &result); err != nil {
			return nil, err
		}
		job.OutputData = &result
	}
	return job, nil
}

func fromDomainException(e *model.DataException) *DataExceptionEntity {
	if e == nil {
		return nil
	}
	return &DataExceptionEntity{
		ID:              e.ID,
		JobID:           e.JobID,
		ExceptionType:   e.ExceptionType,
		Message:         e.Message,
		Severity:        e.Severity.String(),
		Metadata:        e.Metadata,
		StackTrace:      e.StackTrace,
		Resolved:        e.Resolved,
		ResolvedBy:      e.ResolvedBy,
		ResolutionNotes: e.ResolutionNotes,
		Timestamp:       e.Timestamp,
		ResolvedAt:      e.ResolvedAt,
	}
}

func toDomainException(entity *DataExceptionEntity) *model.DataException {
	if entity == nil {
		return nil
	}
	return &model.DataException{
		ID:              entity.ID,
		JobID:           entity.JobID,
		ExceptionType:   entity.ExceptionType,
		Message:         entity.Message,
		Severity:        model.ExceptionSeverity(entity.Severity),
		Metadata:        entity.Metadata,
		StackTrace:      entity.StackTrace,
		Resolved:        entity.Resolved,
		ResolvedBy:      entity.ResolvedBy,
		ResolutionNotes: entity.ResolutionNotes,
		Timestamp:       entity.Timestamp,
		ResolvedAt:      entity.ResolvedAt,
	}
}

func fromDomainApproval(a *model.WorkflowApproval) *WorkflowApprovalEntity {
	if a == nil {
		return nil
	}
	return &WorkflowApprovalEntity{
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

func toDomainApproval(entity *WorkflowApprovalEntity) *model.WorkflowApproval {
	if entity == nil {
		return nil
	}
	return &model.WorkflowApproval{
		ID:           entity.ID,
		JobID:        entity.JobID,
		ApprovalType: model.ApprovalType(entity.ApprovalType),
		State:        model.ApprovalState(entity.State),
		SubmittedBy:  entity.SubmittedBy,
		ApprovedBy:   entity.ApprovedBy,
		Comments:     entity.Comments,
		SubmittedAt:  entity.SubmittedAt,
		ApprovedAt:   entity.ApprovedAt,
	}
}

func fromDomainLineageEvent(e *model.LineageEvent) (*LineageEventEntity, error) {
	if e == nil {
		return nil, nil
	}
	entity := &LineageEventEntity{
		Sequence:  e.Sequence,
		ID:        e.ID,
		JobID:     e.JobID,
		SourceID:  e.SourceID,
		EventType: e.EventType.String(),
		Timestamp: e.Timestamp,
		Metadata:  e.Metadata,
	}
	var err error
	if e.InputSchema != nil {
		if entity.InputSchema, err = marshalJSON(e.InputSchema); err != nil {
			return nil, err
		}
	}
	if e.OutputSchema != nil {
		if entity.OutputSchema, err = marshalJSON(e.OutputSchema); err != nil {
			return nil, err
		}
	}
	if e.TransformationDetails != nil {
		if entity.TransformationDetails, err = marshalJSON(e.TransformationDetails); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

func toDomainLineageEvent(entity *LineageEventEntity) (*model.LineageEvent, error) {
	if entity == nil {
		return nil, nil
	}
	event := &model.LineageEvent{
		ID:        entity.ID,
		JobID:     entity.JobID,
		SourceID:  entity.SourceID,
		EventType: model.LineageEventType(entity.EventType),
		Timestamp: entity.Timestamp,
		Sequence:  entity.Sequence,
		Metadata:  entity.Metadata,
	}
	if entity.InputSchema != nil {
		var schema model.Schema
		if err := unmarshalJSON(entity.InputSchema, &schema); err != nil {
			return nil, err
		}
		event.InputSchema = &schema
	}
	if entity.OutputSchema != nil {
		var schema model.Schema
		if err := unmarshalJSON(entity.OutputSchema, &schema); err != nil {
			return nil, err
		}
		event.OutputSchema = &schema
	}
	if entity.TransformationDetails != nil {
		var details model.TransformationDetails
		if err := unmarshalJSON(entity.TransformationDetails, &details); err != nil {
			return nil, err
		}
		event.TransformationDetails = &details
	}
	return event, nil
}
