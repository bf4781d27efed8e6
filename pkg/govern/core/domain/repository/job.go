package repository

import (
	"context"
	"errors"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// ErrJobNotFound is the error returned when a ProcessingJob is not found.
var ErrJobNotFound = errors.New("processing job not found")

// ErrJobConflict is returned when a guarded status update loses a race; the
// transition must not be applied over a concurrent one.
var ErrJobConflict = errors.New("processing job was modified concurrently")

// JobRepository persists processing jobs.
type JobRepository interface {
	// SaveJob persists a new ProcessingJob.
	SaveJob(ctx context.Context, job *model.ProcessingJob) error

	// UpdateJob updates the state of an existing ProcessingJob.
	UpdateJob(ctx context.Context, job *model.ProcessingJob) error

	// CompareAndSwapJobStatus atomically updates the job's status from
	// expected to next, returning ErrJobConflict if the stored status no
	// longer matches. Status transitions are monotonic and must not race.
	CompareAndSwapJobStatus(ctx context.Context, jobID string, expected, next model.JobStatus) error

	// FindJobByID finds a ProcessingJob by its id.
	FindJobByID(ctx context.Context, id string) (*model.ProcessingJob, error)

	// ListJobs returns all jobs, most recently created first.
	ListJobs(ctx context.Context) ([]*model.ProcessingJob, error)

	// ListJobsByStatus returns all jobs currently in the given status.
	ListJobsByStatus(ctx context.Context, status model.JobStatus) ([]*model.ProcessingJob, error)
}
