package lineage

import (
	"context"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// Recorder appends lineage events on behalf of the processing stages. Every
// write goes straight to the append-only store; a recording failure is
// surfaced to the caller but never mutates earlier events.
type Recorder struct {
	repo repository.LineageRepository
}

// NewRecorder creates a lineage recorder backed by the given repository.
func NewRecorder(repo repository.LineageRepository) *Recorder {
	return &Recorder{repo: repo}
}

// RecordIngestion records the creation of a job from a source, with the
// schema of the data as it arrived.
func (r *Recorder) RecordIngestion(ctx context.Context, jobID, sourceID string, inputSchema *model.Schema, metadata model.Metadata) error {
	event := model.NewLineageEvent(jobID, model.EventIngestion, metadata)
	event.SourceID = sourceID
	event.InputSchema = inputSchema
	return r.append(ctx, event)
}

// RecordTransformation records a completed rule-pipeline run with its
// before/after schemas and per-rule effects.
func (r *Recorder) RecordTransformation(ctx context.Context, jobID string, inputSchema, outputSchema *model.Schema, details *model.TransformationDetails, metadata model.Metadata) error {
	event := model.NewLineageEvent(jobID, model.EventTransformation, metadata)
	event.InputSchema = inputSchema
	event.OutputSchema = outputSchema
	event.TransformationDetails = details
	return r.append(ctx, event)
}

// RecordOutput records a job reaching its terminal success state with the
// schema of the promoted data.
func (r *Recorder) RecordOutput(ctx context.Context, jobID string, outputSchema *model.Schema, metadata model.Metadata) error {
	event := model.NewLineageEvent(jobID, model.EventOutput, metadata)
	event.OutputSchema = outputSchema
	return r.append(ctx, event)
}

// RecordApproval records an approval lifecycle fact (submitted, approved or
// rejected) against the job under review.
func (r *Recorder) RecordApproval(ctx context.Context, jobID string, eventType model.LineageEventType, metadata model.Metadata) error {
	event := model.NewLineageEvent(jobID, eventType, metadata)
	return r.append(ctx, event)
}

func (r *Recorder) append(ctx context.Context, event *model.LineageEvent) error {
	if err := r.repo.AppendLineageEvent(ctx, event); err != nil {
		logger.Errorf("Failed to append lineage event (job: %s, type: %s): %v", event.JobID, event.EventType, err)
		return err
	}
	logger.Debugf("Lineage event recorded (job: %s, type: %s, seq: %d).", event.JobID, event.EventType, event.Sequence)
	return nil
}
