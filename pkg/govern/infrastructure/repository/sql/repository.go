package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

const moduleName = "sql_repository"

// SQLStore implements repository.Store on a gorm-managed database.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore creates a store over an opened database handle. Migrations
// are expected to have run already.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func internalErr(op string, err error) error {
	return exception.New(exception.KindInternal, moduleName, fmt.Sprintf("%s failed", op), err)
}

// --- DataSourceRepository implementation ---

func (s *SQLStore) SaveDataSource(ctx context.Context, source *model.DataSource) error {
	if err := s.db.WithContext(ctx).Create(fromDomainDataSource(source)).Error; err != nil {
		return internalErr("SaveDataSource", err)
	}
	return nil
}

func (s *SQLStore) UpdateDataSource(ctx context.Context, source *model.DataSource) error {
	result := s.db.WithContext(ctx).Save(fromDomainDataSource(source))
	if result.Error != nil {
		return internalErr("UpdateDataSource", result.Error)
	}
	return nil
}

func (s *SQLStore) DeleteDataSource(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&DataSourceEntity{}, "id = ?", id)
	if result.Error != nil {
		return internalErr("DeleteDataSource", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrDataSourceNotFound
	}
	return nil
}

func (s *SQLStore) FindDataSourceByID(ctx context.Context, id string) (*model.DataSource, error) {
	var entity DataSourceEntity
	if err := s.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrDataSourceNotFound
		}
		return nil, internalErr("FindDataSourceByID", err)
	}
	return toDomainDataSource(&entity), nil
}

func (s *SQLStore) ListDataSources(ctx context.Context) ([]*model.DataSource, error) {
	var entities []DataSourceEntity
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&entities).Error; err != nil {
		return nil, internalErr("ListDataSources", err)
	}
	sources := make([]*model.DataSource, len(entities))
	for i := range entities {
		sources[i] = toDomainDataSource(&entities[i])
	}
	return sources, nil
}

// --- JobRepository implementation ---

func (s *SQLStore) SaveJob(ctx context.Context, job *model.ProcessingJob) error {
	entity, err := fromDomainJob(job)
	if err != nil {
		return internalErr("SaveJob", err)
	}
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return internalErr("SaveJob", err)
	}
	return nil
}

func (s *SQLStore) UpdateJob(ctx context.Context, job *model.ProcessingJob) error {
	entity, err := fromDomainJob(job)
	if err != nil {
		return internalErr("UpdateJob", err)
	}
	if err := s.db.WithContext(ctx).Save(entity).Error; err != nil {
		return internalErr("UpdateJob", err)
	}
	return nil
}

func (s *SQLStore) CompareAndSwapJobStatus(ctx context.Context, jobID string, expected, next model.JobStatus) error {
	result := s.db.WithContext(ctx).
		Model(&ProcessingJobEntity{}).
		Where("id = ? AND status = ?", jobID, expected.String()).
		Update("status", next.String())
	if result.Error != nil {
		return internalErr("CompareAndSwapJobStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrJobConflict
	}
	return nil
}

func (s *SQLStore) FindJobByID(ctx context.Context, id string) (*model.ProcessingJob, error) {
	var entity ProcessingJobEntity
	if err := s.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJobNotFound
		}
		return nil, internalErr("FindJobByID", err)
	}
	return toDomainJob(&entity)
}

func (s *SQLStore) ListJobs(ctx context.Context) ([]*model.ProcessingJob, error) {
	return s.listJobs(ctx, s.db.WithContext(ctx).Order("created_at desc"))
}

func (s *SQLStore) ListJobsByStatus(ctx context.Context, status model.JobStatus) ([]*model.ProcessingJob, error) {
	return s.listJobs(ctx, s.db.WithContext(ctx).Where("status = ?", status.String()).Order("created_at desc"))
}

func (s *SQLStore) listJobs(_ context.Context, query *gorm.DB) ([]*model.ProcessingJob, error) {
	var entities []ProcessingJobEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, internalErr("ListJobs", err)
	}
	jobs := make([]*model.ProcessingJob, len(entities))
	for i := range entities {
		job, err := toDomainJob(&entities[i])
		if err != nil {
			return nil, internalErr("ListJobs", err)
		}
		jobs[i] = job
	}
	return jobs, nil
}

// --- ExceptionRepository implementation ---

func (s *SQLStore) SaveException(ctx context.Context, exc *model.DataException) error {
	if err := s.db.WithContext(ctx).Create(fromDomainException(exc)).Error; err != nil {
		return internalErr("SaveException", err)
	}
	return nil
}

func (s *SQLStore) UpdateException(ctx context.Context, exc *model.DataException) error {
	if err := s.db.WithContext(ctx).Save(fromDomainException(exc)).Error; err != nil {
		return internalErr("UpdateException", err)
	}
	return nil
}

func (s *SQLStore) FindExceptionByID(ctx context.Context, id string) (*model.DataException, error) {
	var entity DataExceptionEntity
	if err := s.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrExceptionNotFound
		}
		return nil, internalErr("FindExceptionByID", err)
	}
	return toDomainException(&entity), nil
}

func (s *SQLStore) ListExceptions(ctx context.Context, filter repository.ExceptionFilter) ([]*model.DataException, error) {
	query := s.db.WithContext(ctx).Order("timestamp desc")
	if filter.Resolved != nil {
		query = query.Where("resolved = ?", *filter.Resolved)
	}
	if filter.JobID != "" {
		query = query.Where("job_id = ?", filter.JobID)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity.String())
	}

	var entities []DataExceptionEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, internalErr("ListExceptions", err)
	}
	exceptions := make([]*model.DataException, len(entities))
	for i := range entities {
		exceptions[i] = toDomainException(&entities[i])
	}
	return exceptions, nil
}

// --- ApprovalRepository implementation ---

func (s *SQLStore) SaveApproval(ctx context.Context, approval *model.WorkflowApproval) error {
	// The pending check and insert run in one transaction. A unique index
	// backs the check so racing submits on separate connections cannot both
	// land: postgres uses a partial index on (job_id) where state =
	// 'PENDING', mysql a unique generated column. The loser's insert fails
	// with a duplicate-key error mapped below.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending int64
		if err := tx.Model(&WorkflowApprovalEntity{}).
			Where("job_id = ? AND state = ?", approval.JobID, model.ApprovalPending.String()).
			Count(&pending).Error; err != nil {
			return err
		}
		if pending > 0 {
			return repository.ErrPendingApprovalExists
		}
		return tx.Create(fromDomainApproval(approval)).Error
	})
	if err != nil {
		if errors.Is(err, repository.ErrPendingApprovalExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrPendingApprovalExists
		}
		return internalErr("SaveApproval", err)
	}
	return nil
}

func (s *SQLStore) UpdateApproval(ctx context.Context, approval *model.WorkflowApproval) error {
	if err := s.db.WithContext(ctx).Save(fromDomainApproval(approval)).Error; err != nil {
		return internalErr("UpdateApproval", err)
	}
	return nil
}

func (s *SQLStore) FindApprovalByID(ctx context.Context, id string) (*model.WorkflowApproval, error) {
	var entity WorkflowApprovalEntity
	if err := s.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrApprovalNotFound
		}
		return nil, internalErr("FindApprovalByID", err)
	}
	return toDomainApproval(&entity), nil
}

func (s *SQLStore) FindPendingApprovalByJob(ctx context.Context, jobID string) (*model.WorkflowApproval, error) {
	var entity WorkflowApprovalEntity
	err := s.db.WithContext(ctx).
		Where("job_id = ? AND state = ?", jobID, model.ApprovalPending.String()).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrApprovalNotFound
		}
		return nil, internalErr("FindPendingApprovalByJob", err)
	}
	return toDomainApproval(&entity), nil
}

func (s *SQLStore) ListApprovals(ctx context.Context, state model.ApprovalState) ([]*model.WorkflowApproval, error) {
	query := s.db.WithContext(ctx).Order("submitted_at desc")
	if state != "" {
		query = query.Where("state = ?", state.String())
	}
	var entities []WorkflowApprovalEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, internalErr("ListApprovals", err)
	}
	approvals := make([]*model.WorkflowApproval, len(entities))
	for i := range entities {
		approvals[i] = toDomainApproval(&entities[i])
	}
	return approvals, nil
}

// --- LineageRepository implementation ---

func (s *SQLStore) AppendLineageEvent(ctx context.Context, event *model.LineageEvent) error {
	entity, err := fromDomainLineageEvent(event)
	if err != nil {
		return internalErr("AppendLineageEvent", err)
	}
	entity.Sequence = 0 // assigned by the database
	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return internalErr("AppendLineageEvent", err)
	}
	event.Sequence = entity.Sequence
	return nil
}

func (s *SQLStore) FindLineageByJob(ctx context.Context, jobID string) ([]*model.LineageEvent, error) {
	return s.listLineage(s.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("timestamp asc, sequence asc"))
}

func (s *SQLStore) FindLineageBySource(ctx context.Context, sourceID string) ([]*model.LineageEvent, error) {
	return s.listLineage(s.db.WithContext(ctx).
		Where("source_id = ?", sourceID).
		Order("timestamp desc, sequence desc"))
}

func (s *SQLStore) listLineage(query *gorm.DB) ([]*model.LineageEvent, error) {
	var entities []LineageEventEntity
	if err := query.Find(&entities).Error; err != nil {
		return nil, internalErr("FindLineage", err)
	}
	events := make([]*model.LineageEvent, len(entities))
	for i := range entities {
		event, err := toDomainLineageEvent(&entities[i])
		if err != nil {
			return nil, internalErr("FindLineage", err)
		}
		events[i] = event
	}
	return events, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
