package metrics

import (
	"context"
	"time"
)

// MetricRecorder receives domain-level measurements from the processing
// stages. Implementations must be safe for concurrent use.
type MetricRecorder interface {
	// JobIngested counts a job accepted by the ingestion gateway.
	JobIngested(sourceType string)

	// JobStarted counts a job picked up by a worker.
	JobStarted()

	// JobFinished counts a job reaching a terminal state and observes its
	// run duration.
	JobFinished(status string, duration time.Duration)

	// RuleApplied counts a successful single-rule application.
	RuleApplied(ruleType string)

	// ExceptionRecorded counts a captured processing failure.
	ExceptionRecorded(severity string)

	// ApprovalDecided counts a terminal approval decision.
	ApprovalDecided(state string)
}

// Tracer starts spans around processing stages. The returned function ends
// the span, recording the error when one happened.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func(err error))
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func NewNopRecorder() *NopRecorder { return &NopRecorder{} }

func (NopRecorder) JobIngested(string)                {}
func (NopRecorder) JobStarted()                       {}
func (NopRecorder) JobFinished(string, time.Duration) {}
func (NopRecorder) RuleApplied(string)                {}
func (NopRecorder) ExceptionRecorded(string)          {}
func (NopRecorder) ApprovalDecided(string)            {}

// NopTracer produces no spans.
type NopTracer struct{}

func NewNopTracer() *NopTracer { return &NopTracer{} }

func (NopTracer) StartSpan(ctx context.Context, _ string, _ map[string]string) (context.Context, func(error)) {
	return ctx, func(error) {}
}
