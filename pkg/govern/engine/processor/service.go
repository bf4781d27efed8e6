package processor

import (
	"context"
	"errors"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/rule"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// GetJob returns a job by id.
func (p *Processor) GetJob(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	job, err := p.jobs.FindJobByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "job not found (ID: %s)", jobID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load job", err)
	}
	return job, nil
}

// ListJobs returns all jobs, most recently created first.
func (p *Processor) ListJobs(ctx context.Context) ([]*model.ProcessingJob, error) {
	return p.jobs.ListJobs(ctx)
}

// ApplyTransformationRules installs the ordered rule list on a PENDING job
// and starts its run. Ingestion leaves jobs PENDING; this is the call that
// hands a job to the worker pool, so an empty rule list still triggers a
// pass-through run. Rules are validated structurally here so a malformed
// rule never reaches a running pipeline; once a run has started the list is
// immutable.
func (p *Processor) ApplyTransformationRules(ctx context.Context, jobID string, rules model.RuleList) error {
	if err := rule.ValidateRules(rules); err != nil {
		return exception.New(exception.KindValidation, moduleName, "invalid transformation rules", err)
	}

	job, err := p.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusPending {
		return exception.Newf(exception.KindInvalidState, moduleName, "rules can only be applied to a PENDING job (ID: %s, status: %s)", jobID, job.Status)
	}

	job.TransformationRules = rules.Copy()
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		return exception.New(exception.KindInternal, moduleName, "failed to persist rules", err)
	}
	if err := p.Enqueue(jobID); err != nil {
		return err
	}
	logger.Infof("Rules applied to job, run started (ID: %s, rules: %v).", jobID, rules.RuleTypes())
	return nil
}

// Retry re-enters a FAILED job into the pipeline from the beginning. The
// job id is reused, the error message is cleared, and partial progress is
// never resumed. Retries are manual; the processor never retries on its own.
func (p *Processor) Retry(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	job, err := p.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusFailed {
		return nil, exception.Newf(exception.KindInvalidState, moduleName, "retry accepted only for FAILED jobs (ID: %s, status: %s)", jobID, job.Status)
	}

	if err := p.jobs.CompareAndSwapJobStatus(ctx, jobID, model.JobStatusFailed, model.JobStatusRunning); err != nil {
		if errors.Is(err, repository.ErrJobConflict) {
			return nil, exception.Newf(exception.KindInvalidState, moduleName, "job %s changed state before the retry was accepted", jobID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to start retry", err)
	}

	job.Status = model.JobStatusFailed // reflect the pre-swap state for ResetForRetry
	if err := job.ResetForRetry(); err != nil {
		return nil, exception.New(exception.KindInvalidState, moduleName, err.Error(), nil)
	}
	if err := p.jobs.UpdateJob(ctx, job); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to persist retry", err)
	}
	if err := p.Enqueue(jobID); err != nil {
		return nil, err
	}
	logger.Infof("Job retry accepted (ID: %s).", jobID)
	return job, nil
}

// Cancel stops a job. A PENDING job is removed from contention with no side
// effects beyond the terminal transition; a RUNNING job is cancelled
// best-effort at its next stage boundary.
func (p *Processor) Cancel(ctx context.Context, jobID string) error {
	job, err := p.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.Status {
	case model.JobStatusPending:
		if err := p.jobs.CompareAndSwapJobStatus(ctx, jobID, model.JobStatusPending, model.JobStatusCancelled); err != nil {
			if errors.Is(err, repository.ErrJobConflict) {
				return exception.Newf(exception.KindInvalidState, moduleName, "job %s started before the cancellation was accepted", jobID)
			}
			return exception.New(exception.KindInternal, moduleName, "failed to cancel job", err)
		}
		job.Status = model.JobStatusPending
		if err := job.MarkAsCancelled(); err != nil {
			return exception.New(exception.KindInvalidState, moduleName, err.Error(), nil)
		}
		if err := p.jobs.UpdateJob(ctx, job); err != nil {
			return exception.New(exception.KindInternal, moduleName, "failed to persist cancellation", err)
		}
		logger.Infof("Pending job cancelled (ID: %s).", jobID)
		return nil

	case model.JobStatusRunning:
		p.mu.Lock()
		cancelRun, inFlight := p.running[jobID]
		p.mu.Unlock()
		if inFlight {
			// The run observes the cancellation at its next stage boundary
			// and performs the terminal transition itself.
			cancelRun()
			logger.Infof("Cancellation requested for running job (ID: %s).", jobID)
			return nil
		}
		// No local run owns the job (interrupted by a restart); transition
		// directly.
		if err := p.jobs.CompareAndSwapJobStatus(ctx, jobID, model.JobStatusRunning, model.JobStatusCancelled); err != nil {
			if errors.Is(err, repository.ErrJobConflict) {
				return exception.Newf(exception.KindInvalidState, moduleName, "job %s changed state before the cancellation was accepted", jobID)
			}
			return exception.New(exception.KindInternal, moduleName, "failed to cancel job", err)
		}
		job.Status = model.JobStatusRunning
		if err := job.MarkAsCancelled(); err != nil {
			return exception.New(exception.KindInvalidState, moduleName, err.Error(), nil)
		}
		if err := p.jobs.UpdateJob(ctx, job); err != nil {
			return exception.New(exception.KindInternal, moduleName, "failed to persist cancellation", err)
		}
		logger.Infof("Running job cancelled (ID: %s).", jobID)
		return nil

	default:
		return exception.Newf(exception.KindInvalidState, moduleName, "job %s is already %s", jobID, job.Status)
	}
}
