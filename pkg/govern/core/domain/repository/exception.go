package repository

import (
	"context"
	"errors"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// ErrExceptionNotFound is the error returned when a DataException is not found.
var ErrExceptionNotFound = errors.New("data exception not found")

// ExceptionFilter narrows an exception listing. Nil fields are not applied.
type ExceptionFilter struct {
	Resolved *bool
	JobID    string
	Severity model.ExceptionSeverity
}

// ExceptionRepository persists captured processing failures.
type ExceptionRepository interface {
	// SaveException persists a new DataException.
	SaveException(ctx context.Context, exc *model.DataException) error

	// UpdateException updates the state of an existing DataException.
	UpdateException(ctx context.Context, exc *model.DataException) error

	// FindExceptionByID finds a DataException by its id.
	FindExceptionByID(ctx context.Context, id string) (*model.DataException, error)

	// ListExceptions returns exceptions matching the filter, newest first.
	ListExceptions(ctx context.Context, filter ExceptionFilter) ([]*model.DataException, error)
}
