package inmemory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	"github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourceCRUD(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	source := model.NewDataSource("api", "", model.SourceTypeAPI, model.Metadata{"endpoint": "https://example.com"})
	require.NoError(t, store.SaveDataSource(ctx, source))

	found, err := store.FindDataSourceByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "api", found.Name)

	// The stored copy is isolated from caller mutation.
	found.Name = "mutated"
	again, err := store.FindDataSourceByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "api", again.Name)

	source.Name = "renamed"
	require.NoError(t, store.UpdateDataSource(ctx, source))
	again, err = store.FindDataSourceByID(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", again.Name)

	all, err := store.ListDataSources(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteDataSource(ctx, source.ID))
	_, err = store.FindDataSourceByID(ctx, source.ID)
	assert.ErrorIs(t, err, repository.ErrDataSourceNotFound)
	assert.ErrorIs(t, store.DeleteDataSource(ctx, source.ID), repository.ErrDataSourceNotFound)
}

func TestJobCompareAndSwap(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	job := model.NewProcessingJob("job", "", "", model.Payload{{"a": 1.0}}, "tester")
	require.NoError(t, store.SaveJob(ctx, job))

	require.NoError(t, store.CompareAndSwapJobStatus(ctx, job.ID, model.JobStatusPending, model.JobStatusRunning))

	// A second swap from the stale expectation loses.
	err := store.CompareAndSwapJobStatus(ctx, job.ID, model.JobStatusPending, model.JobStatusCancelled)
	assert.ErrorIs(t, err, repository.ErrJobConflict)

	stored, err := store.FindJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, stored.Status)

	err = store.CompareAndSwapJobStatus(ctx, "no-such-job", model.JobStatusPending, model.JobStatusRunning)
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func TestJobCompareAndSwapAdmitsOneWinner(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	job := model.NewProcessingJob("job", "", "", model.Payload{{"a": 1.0}}, "tester")
	require.NoError(t, store.SaveJob(ctx, job))

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CompareAndSwapJobStatus(ctx, job.ID, model.JobStatusPending, model.JobStatusRunning)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, repository.ErrJobConflict)
		}
	}
	assert.Equal(t, 1, won)
}

func TestJobListOrdering(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	older := model.NewProcessingJob("older", "", "", nil, "tester")
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := model.NewProcessingJob("newer", "", "", nil, "tester")
	require.NoError(t, store.SaveJob(ctx, older))
	require.NoError(t, store.SaveJob(ctx, newer))

	jobs, err := store.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "newer", jobs[0].Name)
	assert.Equal(t, "older", jobs[1].Name)

	pending, err := store.ListJobsByStatus(ctx, model.JobStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	running, err := store.ListJobsByStatus(ctx, model.JobStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestPendingApprovalConstraint(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	first := model.NewWorkflowApproval("job-1", model.ApprovalDataPromotion, "alice", "")
	require.NoError(t, store.SaveApproval(ctx, first))

	second := model.NewWorkflowApproval("job-1", model.ApprovalDataPromotion, "bob", "")
	assert.ErrorIs(t, store.SaveApproval(ctx, second), repository.ErrPendingApprovalExists)

	// Once the first is terminal a new PENDING approval is admitted.
	require.NoError(t, first.MarkApproved("approver", ""))
	require.NoError(t, store.UpdateApproval(ctx, first))
	require.NoError(t, store.SaveApproval(ctx, second))

	pending, err := store.FindPendingApprovalByJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, pending.ID)
}

func TestLineageOrderingUsesSequenceTieBreak(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	// Identical timestamps force the sequence tie-break.
	now := time.Now()
	for _, eventType := range []model.LineageEventType{model.EventIngestion, model.EventTransformation, model.EventOutput} {
		event := model.NewLineageEvent("job-1", eventType, nil)
		event.Timestamp = now
		require.NoError(t, store.AppendLineageEvent(ctx, event))
	}

	events, err := store.FindLineageByJob(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.EventIngestion, events[0].EventType)
	assert.Equal(t, model.EventTransformation, events[1].EventType)
	assert.Equal(t, model.EventOutput, events[2].EventType)
	assert.Less(t, events[0].Sequence, events[1].Sequence)
	assert.Less(t, events[1].Sequence, events[2].Sequence)
}

func TestLineageBySourceNewestFirst(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	old := model.NewLineageEvent("job-1", model.EventIngestion, nil)
	old.SourceID = "src-1"
	old.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, store.AppendLineageEvent(ctx, old))

	recent := model.NewLineageEvent("job-2", model.EventIngestion, nil)
	recent.SourceID = "src-1"
	require.NoError(t, store.AppendLineageEvent(ctx, recent))

	other := model.NewLineageEvent("job-3", model.EventIngestion, nil)
	other.SourceID = "src-2"
	require.NoError(t, store.AppendLineageEvent(ctx, other))

	events, err := store.FindLineageBySource(ctx, "src-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "job-2", events[0].JobID)
	assert.Equal(t, "job-1", events[1].JobID)
}

func TestExceptionFilters(t *testing.T) {
	store := inmemory.NewInMemoryStore()
	ctx := context.Background()

	resolved := model.NewDataException("job-1", "x", "a", model.SeverityHigh, nil)
	require.NoError(t, resolved.MarkResolved("operator", ""))
	open := model.NewDataException("job-1", "x", "b", model.SeverityLow, nil)
	otherJob := model.NewDataException("job-2", "x", "c", model.SeverityHigh, nil)

	for _, exc := range []*model.DataException{resolved, open, otherJob} {
		require.NoError(t, store.SaveException(ctx, exc))
	}

	isResolved := true
	got, err := store.ListExceptions(ctx, repository.ExceptionFilter{Resolved: &isResolved})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = store.ListExceptions(ctx, repository.ExceptionFilter{JobID: "job-1", Severity: model.SeverityHigh})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Message)

	got, err = store.ListExceptions(ctx, repository.ExceptionFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
