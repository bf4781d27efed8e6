package track

import (
	"context"
	"errors"
	"runtime/debug"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

const moduleName = "exception_tracker"

// Tracker records processing failures as first-class, resolvable exception
// records. Records are insert-only apart from the one-way resolved
// transition.
type Tracker struct {
	repo repository.ExceptionRepository
}

// NewTracker creates an exception tracker backed by the given repository.
func NewTracker(repo repository.ExceptionRepository) *Tracker {
	return &Tracker{repo: repo}
}

// Record captures a failure against a job. The jobID may be empty when the
// failure happened before a job existed.
func (t *Tracker) Record(ctx context.Context, jobID, exceptionType, message string, severity model.ExceptionSeverity, metadata model.Metadata) (*model.DataException, error) {
	if !severity.IsValid() {
		return nil, exception.Newf(exception.KindValidation, moduleName, "invalid severity %q", severity)
	}
	exc := model.NewDataException(jobID, exceptionType, message, severity, metadata)
	exc.StackTrace = string(debug.Stack())
	if err := t.repo.SaveException(ctx, exc); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to record exception", err)
	}
	logger.Warnf("Exception recorded (ID: %s, job: %s, severity: %s): %s", exc.ID, jobID, severity, message)
	return exc, nil
}

// Resolve performs the one-way resolution of an exception. Resolving an
// already-resolved record fails and leaves the first resolution untouched.
func (t *Tracker) Resolve(ctx context.Context, exceptionID, resolvedBy, notes string) (*model.DataException, error) {
	exc, err := t.repo.FindExceptionByID(ctx, exceptionID)
	if err != nil {
		if errors.Is(err, repository.ErrExceptionNotFound) {
			return nil, exception.Newf(exception.KindNotFound, moduleName, "exception not found (ID: %s)", exceptionID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load exception", err)
	}
	if err := exc.MarkResolved(resolvedBy, notes); err != nil {
		return nil, exception.New(exception.KindAlreadyResolved, moduleName, err.Error(), nil)
	}
	if err := t.repo.UpdateException(ctx, exc); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to persist resolution", err)
	}
	logger.Infof("Exception resolved (ID: %s, by: %s).", exceptionID, resolvedBy)
	return exc, nil
}

// List returns exceptions matching the filter, newest first.
func (t *Tracker) List(ctx context.Context, filter repository.ExceptionFilter) ([]*model.DataException, error) {
	return t.repo.ListExceptions(ctx, filter)
}

// Stats summarizes the current exception backlog.
type Stats struct {
	Total      int            `json:"total"`
	Resolved   int            `json:"resolved"`
	Unresolved int            `json:"unresolved"`
	BySeverity map[string]int `json:"by_severity"`
}

// Statistics computes backlog counts across all recorded exceptions.
func (t *Tracker) Statistics(ctx context.Context) (*Stats, error) {
	all, err := t.repo.ListExceptions(ctx, repository.ExceptionFilter{})
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Total:      len(all),
		BySeverity: make(map[string]int),
	}
	for _, exc := range all {
		if exc.Resolved {
			stats.Resolved++
		} else {
			stats.Unresolved++
			stats.BySeverity[exc.Severity.String()]++
		}
	}
	return stats, nil
}
