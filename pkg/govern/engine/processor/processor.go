package processor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	"github.com/fluxgate/fluxgate/pkg/govern/core/metrics"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/rule"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/workflow"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
	"github.com/fluxgate/fluxgate/pkg/govern/track"
)

const moduleName = "job_processor"

// systemPrincipal signs actions the processor takes on its own behalf, such
// as withdrawing an approval when its job is cancelled.
const systemPrincipal = "system"

// Config sizes the processor's worker pool and queue.
type Config struct {
	Workers   int
	QueueSize int
}

// Processor orchestrates the full lifecycle of processing jobs: it dequeues,
// invokes the rule engine, gates promotion behind the workflow engine when a
// job requires it, and finalizes state, emitting lineage events and
// exceptions throughout. Jobs never share mutable state; each run is
// independent once dequeued.
type Processor struct {
	jobs       repository.JobRepository
	ruleEngine *rule.Engine
	workflow   *workflow.Engine
	tracker    *track.Tracker
	recorder   *lineage.Recorder
	metrics    metrics.MetricRecorder
	tracer     metrics.Tracer

	queue chan string
	wg    sync.WaitGroup

	baseCtx    context.Context
	cancelBase context.CancelFunc
	stopping   atomic.Bool

	mu      sync.Mutex
	running map[string]context.CancelFunc // per-job cancellation of in-flight runs
}

// NewProcessor creates a job processor. Start must be called before jobs are
// dequeued.
func NewProcessor(
	jobs repository.JobRepository,
	ruleEngine *rule.Engine,
	workflowEngine *workflow.Engine,
	tracker *track.Tracker,
	recorder *lineage.Recorder,
	recorder2 metrics.MetricRecorder,
	tracer metrics.Tracer,
	cfg Config,
) *Processor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	baseCtx, cancelBase := context.WithCancel(context.Background())
	p := &Processor{
		jobs:       jobs,
		ruleEngine: ruleEngine,
		workflow:   workflowEngine,
		tracker:    tracker,
		recorder:   recorder,
		metrics:    recorder2,
		tracer:     tracer,
		queue:      make(chan string, cfg.QueueSize),
		baseCtx:    baseCtx,
		cancelBase: cancelBase,
		running:    make(map[string]context.CancelFunc),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Start re-enqueues jobs that were RUNNING when the previous process
// stopped, so a suspended run resumes from scratch instead of hanging.
func (p *Processor) Start(ctx context.Context) error {
	interrupted, err := p.jobs.ListJobsByStatus(ctx, model.JobStatusRunning)
	if err != nil {
		return exception.New(exception.KindInternal, moduleName, "failed to list interrupted jobs", err)
	}
	for _, job := range interrupted {
		logger.Warnf("Re-enqueueing interrupted job (ID: %s, stage: %s).", job.ID, job.Stage)
		if err := p.Enqueue(job.ID); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts intake and waits for the workers to drain. Shutdown is not a
// user cancellation: interrupted runs leave their jobs RUNNING, suspended
// approvals stay PENDING, and Start re-enqueues them on the next boot.
func (p *Processor) Stop(ctx context.Context) error {
	if p.stopping.CompareAndSwap(false, true) {
		p.cancelBase()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue hands a job id to the worker pool. A full queue is reported to
// the caller instead of blocking a request.
func (p *Processor) Enqueue(jobID string) error {
	if p.stopping.Load() {
		return exception.Newf(exception.KindInternal, moduleName, "processor is stopping, job %s not enqueued", jobID)
	}
	select {
	case p.queue <- jobID:
		return nil
	default:
		return exception.Newf(exception.KindInternal, moduleName, "processing queue is full, job %s not enqueued", jobID)
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.baseCtx.Done():
			return
		case jobID := <-p.queue:
			p.runJob(jobID)
		}
	}
}

// runJob executes the staged run sequence for one job. Cancellation is
// observed at stage boundaries only; an in-flight rule application always
// completes, preserving rule-level atomicity.
func (p *Processor) runJob(jobID string) {
	runCtx, cancel := context.WithCancel(p.baseCtx)
	p.mu.Lock()
	if _, inFlight := p.running[jobID]; inFlight {
		p.mu.Unlock()
		cancel()
		logger.Infof("Job %s already has a run in flight, skipping duplicate dequeue.", jobID)
		return
	}
	p.running[jobID] = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		delete(p.running, jobID)
		p.mu.Unlock()
	}()

	job, err := p.jobs.FindJobByID(runCtx, jobID)
	if err != nil {
		logger.Errorf("Dequeued job could not be loaded (ID: %s): %v", jobID, err)
		return
	}

	switch job.Status {
	case model.JobStatusPending:
		// The swap loses when a cancel landed between dequeue and here;
		// the job is then terminal and the run is a no-op.
		if err := p.jobs.CompareAndSwapJobStatus(runCtx, jobID, model.JobStatusPending, model.JobStatusRunning); err != nil {
			if errors.Is(err, repository.ErrJobConflict) {
				logger.Infof("Job %s left PENDING before the run started, skipping.", jobID)
				return
			}
			logger.Errorf("Failed to start job (ID: %s): %v", jobID, err)
			return
		}
		now := time.Now()
		job.Status = model.JobStatusRunning
		job.StartedAt = &now
		job.Stage = model.StageTransform
		if err := p.jobs.UpdateJob(runCtx, job); err != nil {
			logger.Errorf("Failed to persist job start (ID: %s): %v", jobID, err)
			return
		}
	case model.JobStatusRunning:
		// Retry or recovery re-entry; the pipeline restarts from the
		// beginning, never from partial progress.
	default:
		logger.Infof("Dequeued job %s is %s, nothing to run.", jobID, job.Status)
		return
	}

	p.metrics.JobStarted()
	spanCtx, endSpan := p.tracer.StartSpan(runCtx, "job.run", map[string]string{"job_id": jobID})
	runErr := p.executeStages(spanCtx, job)
	endSpan(runErr)

	if job.StartedAt != nil {
		p.metrics.JobFinished(job.Status.String(), time.Since(*job.StartedAt))
	}
}

func (p *Processor) executeStages(ctx context.Context, job *model.ProcessingJob) error {
	// Stage boundary: transform.
	if p.cancelledAtBoundary(ctx, job) {
		return nil
	}

	output, effects, err := p.ruleEngine.Apply(job.InputData, job.TransformationRules)
	if err != nil {
		p.failJob(ctx, job, "rule_application", err)
		return err
	}
	for _, effect := range effects {
		p.metrics.RuleApplied(effect.RuleType)
	}

	inputSchema := model.SnapshotSchema(job.InputData)
	outputSchema := model.SnapshotSchema(output)
	details := &model.TransformationDetails{
		RulesApplied:  job.TransformationRules.RuleTypes(),
		SchemaChanges: model.CompareSchemas(inputSchema, outputSchema),
		RuleEffects:   effects,
	}
	if err := p.recorder.RecordTransformation(ctx, job.ID, &inputSchema, &outputSchema, details, nil); err != nil {
		p.failJob(ctx, job, "lineage_write", err)
		return err
	}

	// Stage boundary: approval gate.
	if p.cancelledAtBoundary(ctx, job) {
		return nil
	}

	if job.RequiresApproval {
		state, err := p.awaitApproval(ctx, job)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				if p.stopping.Load() {
					// Shutdown, not a decision: the job stays suspended
					// (RUNNING, awaiting_approval) and its approval stays
					// PENDING so the next boot re-enqueues it.
					logger.Infof("Shutdown interrupted job %s at the approval gate; it remains suspended.", job.ID)
					return nil
				}
				p.cancelSuspendedJob(job)
				return nil
			}
			p.failJob(ctx, job, "approval_gate", err)
			return err
		}
		p.metrics.ApprovalDecided(state.String())
		switch state {
		case model.ApprovalApproved:
			// fall through to finalize
		case model.ApprovalRejected:
			rejection := exception.Newf(exception.KindValidation, moduleName, "promotion of job %s was rejected by the approver", job.ID)
			p.failJob(ctx, job, "approval_rejected", rejection)
			return nil
		case model.ApprovalCancelled:
			p.cancelSuspendedJob(job)
			return nil
		}
	}

	// Stage boundary: finalize.
	if p.cancelledAtBoundary(ctx, job) {
		return nil
	}

	result := &model.Result{
		ProcessedData: output,
		RowCount:      len(output),
		OriginalCount: len(job.InputData),
		Summary: map[string]interface{}{
			"rules_applied":    job.TransformationRules.RuleTypes(),
			"rows_in":          len(job.InputData),
			"rows_out":         len(output),
			"row_count_change": len(output) - len(job.InputData),
		},
	}
	job.MarkAsCompleted(result)
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		logger.Errorf("Failed to persist job completion (ID: %s): %v", job.ID, err)
		return err
	}
	if err := p.recorder.RecordOutput(ctx, job.ID, &outputSchema, model.Metadata{"row_count": len(output)}); err != nil {
		return err
	}
	logger.Infof("Job completed (ID: %s, rows: %d -> %d).", job.ID, len(job.InputData), len(output))
	return nil
}

// awaitApproval suspends the run at the approval gate. The job stays
// RUNNING in the awaiting_approval sub-state until a terminal decision
// arrives; a re-entered run reuses the PENDING approval it finds.
func (p *Processor) awaitApproval(ctx context.Context, job *model.ProcessingJob) (model.ApprovalState, error) {
	job.Stage = model.StageAwaitingApproval
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		return "", err
	}

	approval, err := p.workflow.Submit(ctx, job.ID, model.ApprovalDataPromotion, job.CreatedBy, "")
	if err != nil {
		if !exception.IsKind(err, exception.KindDuplicateApproval) {
			return "", err
		}
		approval, err = p.workflow.PendingForJob(ctx, job.ID)
		if err != nil {
			return "", err
		}
	}

	logger.Infof("Job %s awaiting approval (approval: %s).", job.ID, approval.ID)
	return p.workflow.AwaitDecision(ctx, approval.ID)
}

// cancelledAtBoundary reports whether the run was interrupted. A user
// cancellation transitions the job to CANCELLED; a shutdown leaves it
// RUNNING so Start can re-enqueue it on the next boot.
func (p *Processor) cancelledAtBoundary(ctx context.Context, job *model.ProcessingJob) bool {
	if ctx.Err() == nil {
		return false
	}
	if p.stopping.Load() {
		logger.Infof("Shutdown interrupted job %s at a stage boundary; it will be re-enqueued on the next boot.", job.ID)
		return true
	}
	p.cancelSuspendedJob(job)
	return true
}

// cancelSuspendedJob finishes the CANCELLED transition for a run that
// observed its cancellation. Persistence uses a background context because
// the run's own context is already dead.
func (p *Processor) cancelSuspendedJob(job *model.ProcessingJob) {
	ctx := context.Background()
	if err := job.MarkAsCancelled(); err != nil {
		logger.Warnf("Job %s could not transition to CANCELLED: %v", job.ID, err)
		return
	}
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		logger.Errorf("Failed to persist job cancellation (ID: %s): %v", job.ID, err)
		return
	}
	if approval, err := p.workflow.PendingForJob(ctx, job.ID); err == nil {
		if _, err := p.workflow.Cancel(ctx, approval.ID, systemPrincipal, "job cancelled"); err != nil {
			logger.Warnf("Failed to withdraw approval %s for cancelled job %s: %v", approval.ID, job.ID, err)
		}
	}
	logger.Infof("Job cancelled (ID: %s).", job.ID)
}

// failJob transitions the job to FAILED and records the failure as a HIGH
// severity exception referencing the job.
func (p *Processor) failJob(ctx context.Context, job *model.ProcessingJob, exceptionType string, cause error) {
	job.MarkAsFailed(cause)
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		logger.Errorf("Failed to persist job failure (ID: %s): %v", job.ID, err)
	}

	metadata := model.Metadata{"job_name": job.Name}
	var appErr *rule.ApplicationError
	if errors.As(cause, &appErr) {
		metadata["rule_index"] = appErr.RuleIndex
		metadata["rule_type"] = appErr.RuleType.String()
	}
	if _, err := p.tracker.Record(ctx, job.ID, exceptionType, exception.ExtractErrorMessage(cause), model.SeverityHigh, metadata); err != nil {
		logger.Errorf("Failed to record exception for job %s: %v", job.ID, err)
	}
	p.metrics.ExceptionRecorded(model.SeverityHigh.String())
	logger.Warnf("Job failed (ID: %s): %v", job.ID, cause)
}
