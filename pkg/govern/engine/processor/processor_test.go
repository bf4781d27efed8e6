package processor_test

import (
	"context"
	"testing"
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	"github.com/fluxgate/fluxgate/pkg/govern/core/metrics"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/processor"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/rule"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/workflow"
	"github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/inmemory"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	"github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	"github.com/fluxgate/fluxgate/pkg/govern/track"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *inmemory.InMemoryStore
	processor *processor.Processor
	workflow  *workflow.Engine
	tracker   *track.Tracker
	recorder  *lineage.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmemory.NewInMemoryStore()
	recorder := lineage.NewRecorder(store)
	workflowEngine := workflow.NewEngine(store, recorder)
	tracker := track.NewTracker(store)
	proc := processor.NewProcessor(
		store,
		rule.NewEngine(),
		workflowEngine,
		tracker,
		recorder,
		metrics.NewNopRecorder(),
		metrics.NewNopTracer(),
		processor.Config{Workers: 2, QueueSize: 16},
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = proc.Stop(ctx)
	})
	return &fixture{
		store:     store,
		processor: proc,
		workflow:  workflowEngine,
		tracker:   tracker,
		recorder:  recorder,
	}
}

func (f *fixture) saveJob(t *testing.T, job *model.ProcessingJob) {
	t.Helper()
	require.NoError(t, f.store.SaveJob(context.Background(), job))
}

func (f *fixture) waitForStatus(t *testing.T, jobID string, status model.JobStatus) *model.ProcessingJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.store.FindJobByID(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status == status {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := f.store.FindJobByID(context.Background(), jobID)
	t.Fatalf("job %s never reached %s (current: %s)", jobID, status, job.Status)
	return nil
}

func (f *fixture) waitForPendingApproval(t *testing.T, jobID string) *model.WorkflowApproval {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		approval, err := f.store.FindPendingApprovalByJob(context.Background(), jobID)
		if err == nil {
			return approval
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never opened a pending approval", jobID)
	return nil
}

func eventTypes(events []*model.LineageEvent) []string {
	types := make([]string, len(events))
	for i, event := range events {
		types[i] = event.EventType.String()
	}
	return types
}

func TestProcessor_CompletesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("dedupe", "", "", model.Payload{
		{"a": 1.0},
		{"a": 1.0},
		{"a": nil},
	}, "tester")
	f.saveJob(t, job)

	// Applying rules is the call that starts the run.
	require.NoError(t, f.processor.ApplyTransformationRules(ctx, job.ID, model.RuleList{
		{RuleType: model.RuleRemoveDuplicates},
		{RuleType: model.RuleHandleNulls, Parameters: model.Metadata{"strategy": "drop"}},
	}))

	done := f.waitForStatus(t, job.ID, model.JobStatusCompleted)
	require.NotNil(t, done.OutputData)
	require.Len(t, done.OutputData.ProcessedData, 1)
	assert.Equal(t, 1.0, done.OutputData.ProcessedData[0]["a"])
	assert.Equal(t, 1, done.OutputData.RowCount)
	assert.Equal(t, 3, done.OutputData.OriginalCount)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Stage)

	events, err := f.store.FindLineageByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"transformation", "output"}, eventTypes(events))

	transformation := events[0]
	require.NotNil(t, transformation.TransformationDetails)
	assert.Equal(t, []string{"remove_duplicates", "handle_nulls"}, transformation.TransformationDetails.RulesApplied)
	assert.Equal(t, -2, transformation.TransformationDetails.SchemaChanges.RowCountChange)
	require.NotNil(t, transformation.InputSchema)
	assert.Equal(t, 3, transformation.InputSchema.RowCount)
	require.NotNil(t, transformation.OutputSchema)
	assert.Equal(t, 1, transformation.OutputSchema.RowCount)
}

func TestProcessor_FailedRuleRecordsException(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("broken", "", "", model.Payload{{"a": "x"}}, "tester")
	// Bypass validation to exercise the pipeline-time failure path.
	job.TransformationRules = model.RuleList{
		{RuleType: model.RuleNormalizeText, Parameters: model.Metadata{
			"columns":    []string{"a"},
			"operations": []string{"explode"},
		}},
	}
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))

	failed := f.waitForStatus(t, job.ID, model.JobStatusFailed)
	assert.Contains(t, failed.ErrorMessage, "rule 0")
	assert.NotNil(t, failed.CompletedAt)

	excs, err := f.tracker.List(ctx, repository.ExceptionFilter{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, excs, 1)
	assert.Equal(t, "rule_application", excs[0].ExceptionType)
	assert.Equal(t, model.SeverityHigh, excs[0].Severity)
	assert.Equal(t, 0, excs[0].Metadata["rule_index"])
	assert.Equal(t, "normalize_text", excs[0].Metadata["rule_type"])
	assert.NotEmpty(t, excs[0].StackTrace)
}

func TestProcessor_ApprovalGateApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("gated", "", "", model.Payload{{"a": 1.0}}, "submitter")
	job.RequiresApproval = true
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))

	approval := f.waitForPendingApproval(t, job.ID)
	assert.Equal(t, model.ApprovalDataPromotion, approval.ApprovalType)
	assert.Equal(t, "submitter", approval.SubmittedBy)

	// The job is suspended RUNNING at the approval gate.
	suspended, err := f.store.FindJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, suspended.Status)
	assert.Equal(t, model.StageAwaitingApproval, suspended.Stage)

	_, err = f.workflow.Approve(ctx, approval.ID, "approver", "ok")
	require.NoError(t, err)

	done := f.waitForStatus(t, job.ID, model.JobStatusCompleted)
	assert.NotNil(t, done.OutputData)

	events, err := f.store.FindLineageByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"transformation", "approval_submitted", "approval_approved", "output"}, eventTypes(events))
}

func TestProcessor_ApprovalGateRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("gated", "", "", model.Payload{{"a": 1.0}}, "submitter")
	job.RequiresApproval = true
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))

	approval := f.waitForPendingApproval(t, job.ID)
	_, err := f.workflow.Reject(ctx, approval.ID, "approver", "not good enough")
	require.NoError(t, err)

	failed := f.waitForStatus(t, job.ID, model.JobStatusFailed)
	assert.Contains(t, failed.ErrorMessage, "rejected")
	assert.Nil(t, failed.OutputData)

	excs, err := f.tracker.List(ctx, repository.ExceptionFilter{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, excs, 1)
	assert.Equal(t, "approval_rejected", excs[0].ExceptionType)
	assert.Equal(t, model.SeverityHigh, excs[0].Severity)

	events, err := f.store.FindLineageByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"transformation", "approval_submitted", "approval_rejected"}, eventTypes(events))
}

func TestProcessor_ApprovalGateCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("gated", "", "", model.Payload{{"a": 1.0}}, "submitter")
	job.RequiresApproval = true
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))

	approval := f.waitForPendingApproval(t, job.ID)
	_, err := f.workflow.Cancel(ctx, approval.ID, "submitter", "withdrawn")
	require.NoError(t, err)

	cancelled := f.waitForStatus(t, job.ID, model.JobStatusCancelled)
	assert.Nil(t, cancelled.OutputData)

	// Cancellation leaves no approval lineage beyond the submission.
	events, err := f.store.FindLineageByJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"transformation", "approval_submitted"}, eventTypes(events))
}

func TestProcessor_CancelPendingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("queued", "", "", model.Payload{{"a": 1.0}}, "tester")
	f.saveJob(t, job)

	require.NoError(t, f.processor.Cancel(ctx, job.ID))

	cancelled, err := f.store.FindJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)

	// A terminal job rejects further cancellation.
	err = f.processor.Cancel(ctx, job.ID)
	assert.Equal(t, exception.KindInvalidState, exception.KindOf(err))

	// A cancelled job left in the queue is skipped by the worker.
	require.NoError(t, f.processor.Enqueue(job.ID))
	time.Sleep(50 * time.Millisecond)
	still, err := f.store.FindJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, still.Status)
}

func TestProcessor_CancelSuspendedJobWithdrawsApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("gated", "", "", model.Payload{{"a": 1.0}}, "submitter")
	job.RequiresApproval = true
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))

	approval := f.waitForPendingApproval(t, job.ID)
	require.NoError(t, f.processor.Cancel(ctx, job.ID))

	cancelled := f.waitForStatus(t, job.ID, model.JobStatusCancelled)
	assert.Empty(t, cancelled.Stage)

	withdrawn, err := f.store.FindApprovalByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalCancelled, withdrawn.State)
	assert.Equal(t, "system", withdrawn.ApprovedBy)
}

func TestProcessor_Retry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("flaky", "", "", model.Payload{{"a": "x"}}, "tester")
	job.TransformationRules = model.RuleList{
		{RuleType: model.RuleNormalizeText, Parameters: model.Metadata{
			"columns":    []string{"a"},
			"operations": []string{"explode"},
		}},
	}
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))
	f.waitForStatus(t, job.ID, model.JobStatusFailed)

	// Fix the rule list, then retry. The job id is reused.
	failed, err := f.store.FindJobByID(ctx, job.ID)
	require.NoError(t, err)
	failed.TransformationRules = model.RuleList{
		{RuleType: model.RuleNormalizeText, Parameters: model.Metadata{
			"columns":    []string{"a"},
			"operations": []string{"upper"},
		}},
	}
	require.NoError(t, f.store.UpdateJob(ctx, failed))

	retried, err := f.processor.Retry(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retried.ID)
	assert.Empty(t, retried.ErrorMessage)

	done := f.waitForStatus(t, job.ID, model.JobStatusCompleted)
	require.NotNil(t, done.OutputData)
	assert.Equal(t, "X", done.OutputData.ProcessedData[0]["a"])
	assert.Empty(t, done.ErrorMessage)
}

func TestProcessor_RetryRejectsNonFailedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("fresh", "", "", model.Payload{{"a": 1.0}}, "tester")
	f.saveJob(t, job)

	_, err := f.processor.Retry(ctx, job.ID)
	assert.Equal(t, exception.KindInvalidState, exception.KindOf(err))

	_, err = f.processor.Retry(ctx, "no-such-job")
	assert.Equal(t, exception.KindNotFound, exception.KindOf(err))
}

func TestProcessor_ApplyTransformationRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("fresh", "", "", model.Payload{{"a": 1.0}}, "tester")
	f.saveJob(t, job)

	// Malformed rules never reach the job.
	err := f.processor.ApplyTransformationRules(ctx, job.ID, model.RuleList{
		{RuleType: "explode_rows"},
	})
	assert.Equal(t, exception.KindValidation, exception.KindOf(err))

	stored, ferr := f.store.FindJobByID(ctx, job.ID)
	require.NoError(t, ferr)
	assert.Empty(t, stored.TransformationRules)

	// Valid rules are installed on the PENDING job and start its run.
	rules := model.RuleList{{RuleType: model.RuleRemoveDuplicates}}
	require.NoError(t, f.processor.ApplyTransformationRules(ctx, job.ID, rules))
	done := f.waitForStatus(t, job.ID, model.JobStatusCompleted)
	assert.Equal(t, []string{"remove_duplicates"}, done.TransformationRules.RuleTypes())

	// Once the job has left PENDING, the rule list is immutable.
	err = f.processor.ApplyTransformationRules(ctx, job.ID, rules)
	assert.Equal(t, exception.KindInvalidState, exception.KindOf(err))
}

func TestProcessor_StartRecoversInterruptedJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A job left RUNNING by a previous process instance.
	job := model.NewProcessingJob("interrupted", "", "", model.Payload{{"a": 1.0}}, "tester")
	f.saveJob(t, job)
	require.NoError(t, f.store.CompareAndSwapJobStatus(ctx, job.ID, model.JobStatusPending, model.JobStatusRunning))

	require.NoError(t, f.processor.Start(ctx))

	done := f.waitForStatus(t, job.ID, model.JobStatusCompleted)
	assert.NotNil(t, done.OutputData)
}

func TestProcessor_StopLeavesSuspendedJobForRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := model.NewProcessingJob("gated", "", "", model.Payload{{"a": 1.0}}, "submitter")
	job.RequiresApproval = true
	f.saveJob(t, job)
	require.NoError(t, f.processor.Enqueue(job.ID))
	approval := f.waitForPendingApproval(t, job.ID)

	// Shutdown is not a decision: the suspension survives the stop.
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.processor.Stop(stopCtx))

	suspended, err := f.store.FindJobByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, suspended.Status)
	assert.Equal(t, model.StageAwaitingApproval, suspended.Stage)

	still, err := f.store.FindApprovalByID(ctx, approval.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApprovalPending, still.State)

	// A stopped processor accepts no new work.
	err = f.processor.Enqueue(job.ID)
	assert.Equal(t, exception.KindInternal, exception.KindOf(err))

	// The next boot re-enqueues the suspension and the decision lands.
	revived := processor.NewProcessor(
		f.store,
		rule.NewEngine(),
		f.workflow,
		f.tracker,
		f.recorder,
		metrics.NewNopRecorder(),
		metrics.NewNopTracer(),
		processor.Config{Workers: 2, QueueSize: 16},
	)
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()
		_ = revived.Stop(cleanupCtx)
	})
	require.NoError(t, revived.Start(ctx))

	reopened := f.waitForPendingApproval(t, job.ID)
	assert.Equal(t, approval.ID, reopened.ID)
	// Let the re-enqueued run reach the gate and re-attach to its approval.
	time.Sleep(100 * time.Millisecond)
	_, err = f.workflow.Approve(ctx, reopened.ID, "approver", "ok")
	require.NoError(t, err)

	done := f.waitForStatus(t, job.ID, model.JobStatusCompleted)
	assert.NotNil(t, done.OutputData)
}
