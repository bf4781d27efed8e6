package lineage

import (
	"context"
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// Trace is the full lineage picture of one job, assembled from its ordered
// event log.
type Trace struct {
	JobID           string           `json:"job_id"`
	TotalEvents     int              `json:"total_events"`
	Events          []TraceEvent     `json:"events"`
	Transformations []Transformation `json:"transformations"`
	DataFlow        []DataFlowStep   `json:"data_flow"`
}

// TraceEvent is one event of the trace, in job order.
type TraceEvent struct {
	ID           string         `json:"id"`
	EventType    string         `json:"event_type"`
	Timestamp    time.Time      `json:"timestamp"`
	SourceID     string         `json:"source_id,omitempty"`
	Metadata     model.Metadata `json:"metadata,omitempty"`
	InputSchema  *model.Schema  `json:"input_schema,omitempty"`
	OutputSchema *model.Schema  `json:"output_schema,omitempty"`
}

// Transformation summarizes one transformation event of the trace.
type Transformation struct {
	EventID       string             `json:"event_id"`
	Timestamp     time.Time          `json:"timestamp"`
	RulesApplied  []string           `json:"rules_applied"`
	SchemaChanges model.SchemaDiff   `json:"schema_changes"`
	RuleEffects   []model.RuleEffect `json:"rule_effects,omitempty"`
}

// DataFlowStep is one stage of the job's data flow, with the row count the
// data had after the stage when a schema was recorded.
type DataFlowStep struct {
	Step      int       `json:"step"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
	RowCount  *int      `json:"row_count,omitempty"`
}

// AssembleTrace builds the trace for a job from its ordered lineage events.
// A job with no events yields an empty, well-formed trace.
func (r *Recorder) AssembleTrace(ctx context.Context, jobID string) (*Trace, error) {
	events, err := r.repo.FindLineageByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	trace := &Trace{
		JobID:           jobID,
		TotalEvents:     len(events),
		Events:          make([]TraceEvent, 0, len(events)),
		Transformations: make([]Transformation, 0),
		DataFlow:        make([]DataFlowStep, 0, len(events)),
	}

	for i, event := range events {
		trace.Events = append(trace.Events, TraceEvent{
			ID:           event.ID,
			EventType:    event.EventType.String(),
			Timestamp:    event.Timestamp,
			SourceID:     event.SourceID,
			Metadata:     event.Metadata,
			InputSchema:  event.InputSchema,
			OutputSchema: event.OutputSchema,
		})

		if event.EventType == model.EventTransformation && event.TransformationDetails != nil {
			trace.Transformations = append(trace.Transformations, Transformation{
				EventID:       event.ID,
				Timestamp:     event.Timestamp,
				RulesApplied:  event.TransformationDetails.RulesApplied,
				SchemaChanges: event.TransformationDetails.SchemaChanges,
				RuleEffects:   event.TransformationDetails.RuleEffects,
			})
		}

		step := DataFlowStep{
			Step:      i + 1,
			Stage:     event.EventType.String(),
			Timestamp: event.Timestamp,
		}
		if schema := stageSchema(event); schema != nil {
			rows := schema.RowCount
			step.RowCount = &rows
		}
		trace.DataFlow = append(trace.DataFlow, step)
	}

	return trace, nil
}

// FindBySource lists every event recorded against a source, newest first.
func (r *Recorder) FindBySource(ctx context.Context, sourceID string) ([]*model.LineageEvent, error) {
	return r.repo.FindLineageBySource(ctx, sourceID)
}

// stageSchema picks the schema that describes the data as it left the
// stage: the output schema when present, otherwise the input schema.
func stageSchema(event *model.LineageEvent) *model.Schema {
	if event.OutputSchema != nil {
		return event.OutputSchema
	}
	return event.InputSchema
}
