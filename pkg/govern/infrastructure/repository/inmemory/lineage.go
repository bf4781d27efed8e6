package inmemory

import (
	"context"
	"sort"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

func cloneLineageEvent(event *model.LineageEvent) *model.LineageEvent {
	cloned := *event
	cloned.Metadata = event.Metadata.Copy()
	return &cloned
}

// AppendLineageEvent appends an event to the log and assigns its insertion
// sequence number. The log is append-only; nothing ever mutates or removes
// stored events.
func (s *InMemoryStore) AppendLineageEvent(ctx context.Context, event *model.LineageEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lineageSeq++
	event.Sequence = s.lineageSeq
	s.lineageEvents = append(s.lineageEvents, cloneLineageEvent(event))
	return nil
}

// FindLineageByJob returns all events for the job ordered by timestamp, then
// insertion sequence to break ties.
func (s *InMemoryStore) FindLineageByJob(ctx context.Context, jobID string) ([]*model.LineageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*model.LineageEvent, 0)
	for _, event := range s.lineageEvents {
		if event.JobID == jobID {
			events = append(events, cloneLineageEvent(event))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Sequence < events[j].Sequence
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// FindLineageBySource returns all events recorded against the source,
// newest first.
func (s *InMemoryStore) FindLineageBySource(ctx context.Context, sourceID string) ([]*model.LineageEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]*model.LineageEvent, 0)
	for _, event := range s.lineageEvents {
		if event.SourceID == sourceID {
			events = append(events, cloneLineageEvent(event))
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Sequence > events[j].Sequence
		}
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events, nil
}
