package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
)

// cloneJob deep-copies the mutable parts of a job so callers never share
// state with the store.
func cloneJob(job *model.ProcessingJob) *model.ProcessingJob {
	cloned := *job
	cloned.TransformationRules = job.TransformationRules.Copy()
	cloned.InputData = job.InputData.Copy()
	if job.OutputData != nil {
		out := *job.OutputData
		out.ProcessedData = job.OutputData.ProcessedData.Copy()
		cloned.OutputData = &out
	}
	return &cloned
}

// SaveJob persists a new ProcessingJob. It returns an error if a job with
// the same ID already exists.
func (s *InMemoryStore) SaveJob(ctx context.Context, job *model.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("ProcessingJob with ID %s already exists", job.ID)
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// UpdateJob updates an existing ProcessingJob.
func (s *InMemoryStore) UpdateJob(ctx context.Context, job *model.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return repository.ErrJobNotFound
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// CompareAndSwapJobStatus atomically moves the stored job's status from
// expected to next. The single store mutex provides the compare-and-swap
// semantics the status transition requires.
func (s *InMemoryStore) CompareAndSwapJobStatus(ctx context.Context, jobID string, expected, next model.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return repository.ErrJobNotFound
	}
	if job.Status != expected {
		return repository.ErrJobConflict
	}
	job.Status = next
	return nil
}

// FindJobByID finds a ProcessingJob by its id. The returned job is a deep
// copy to prevent external modification of internal state.
func (s *InMemoryStore) FindJobByID(ctx context.Context, id string) (*model.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// ListJobs returns all jobs, most recently created first.
func (s *InMemoryStore) ListJobs(ctx context.Context) ([]*model.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*model.ProcessingJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// ListJobsByStatus returns all jobs currently in the given status, most
// recently created first.
func (s *InMemoryStore) ListJobsByStatus(ctx context.Context, status model.JobStatus) ([]*model.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*model.ProcessingJob, 0)
	for _, job := range s.jobs {
		if job.Status == status {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}
