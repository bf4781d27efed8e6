package repository

import (
	"context"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// LineageRepository is the append-only log of lineage events. Events are
// never updated or deleted.
type LineageRepository interface {
	// AppendLineageEvent appends an event, assigning its insertion sequence
	// number. The sequence breaks ordering ties between events whose
	// timestamps collide.
	AppendLineageEvent(ctx context.Context, event *model.LineageEvent) error

	// FindLineageByJob returns all events for the job ordered by timestamp,
	// then sequence.
	FindLineageByJob(ctx context.Context, jobID string) ([]*model.LineageEvent, error)

	// FindLineageBySource returns all events recorded against the source,
	// newest first.
	FindLineageBySource(ctx context.Context, sourceID string) ([]*model.LineageEvent, error)
}
