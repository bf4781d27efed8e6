package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJob(status model.JobStatus) *model.ProcessingJob {
	job := model.NewProcessingJob("test job", "", "", model.Payload{{"a": 1.0}}, "tester")
	job.Status = status
	return job
}

func TestProcessingJob_TransitionTo(t *testing.T) {
	// Valid transitions.
	job := newTestJob(model.JobStatusPending)
	assert.NoError(t, job.TransitionTo(model.JobStatusRunning))

	job = newTestJob(model.JobStatusPending)
	assert.NoError(t, job.TransitionTo(model.JobStatusCancelled))

	job = newTestJob(model.JobStatusRunning)
	assert.NoError(t, job.TransitionTo(model.JobStatusCompleted))

	job = newTestJob(model.JobStatusRunning)
	assert.NoError(t, job.TransitionTo(model.JobStatusFailed))

	job = newTestJob(model.JobStatusRunning)
	assert.NoError(t, job.TransitionTo(model.JobStatusCancelled))

	// FAILED -> RUNNING is the retry path.
	job = newTestJob(model.JobStatusFailed)
	assert.NoError(t, job.TransitionTo(model.JobStatusRunning))

	// Invalid transitions.
	job = newTestJob(model.JobStatusPending)
	assert.Error(t, job.TransitionTo(model.JobStatusCompleted))

	job = newTestJob(model.JobStatusCompleted)
	assert.Error(t, job.TransitionTo(model.JobStatusRunning))

	job = newTestJob(model.JobStatusCancelled)
	assert.Error(t, job.TransitionTo(model.JobStatusRunning))

	job = newTestJob(model.JobStatusFailed)
	assert.Error(t, job.TransitionTo(model.JobStatusPending))
}

func TestProcessingJob_Lifecycle(t *testing.T) {
	job := newTestJob(model.JobStatusPending)
	assert.Nil(t, job.StartedAt)
	assert.Nil(t, job.CompletedAt)

	require.NoError(t, job.MarkAsRunning())
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, model.StageTransform, job.Stage)
	require.NotNil(t, job.StartedAt)

	result := &model.Result{ProcessedData: model.Payload{{"a": 1.0}}, RowCount: 1, OriginalCount: 1}
	job.MarkAsCompleted(result)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.CompletedAt.Before(*job.StartedAt))
	assert.Equal(t, result, job.OutputData)
	assert.Empty(t, job.Stage)
}

func TestProcessingJob_MarkAsFailedRecordsMessage(t *testing.T) {
	job := newTestJob(model.JobStatusRunning)
	job.MarkAsFailed(errors.New("boom"))
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMessage)
	assert.NotNil(t, job.CompletedAt)
}

func TestProcessingJob_ResetForRetry(t *testing.T) {
	job := newTestJob(model.JobStatusRunning)
	job.MarkAsFailed(errors.New("boom"))

	id := job.ID
	require.NoError(t, job.ResetForRetry())

	// The id is reused; every run-scoped field starts over.
	assert.Equal(t, id, job.ID)
	assert.Equal(t, model.JobStatusRunning, job.Status)
	assert.Equal(t, model.StageTransform, job.Stage)
	assert.Empty(t, job.ErrorMessage)
	assert.Nil(t, job.OutputData)
	assert.Nil(t, job.CompletedAt)
	assert.NotNil(t, job.StartedAt)

	// Retry is only accepted from FAILED.
	assert.Error(t, newTestJob(model.JobStatusCompleted).ResetForRetry())
	assert.Error(t, newTestJob(model.JobStatusPending).ResetForRetry())
}

func TestWorkflowApproval_Decisions(t *testing.T) {
	approval := model.NewWorkflowApproval("job-1", model.ApprovalDataPromotion, "submitter", "please review")
	assert.Equal(t, model.ApprovalPending, approval.State)
	assert.False(t, approval.State.IsTerminal())

	require.NoError(t, approval.MarkApproved("approver", "looks good"))
	assert.Equal(t, model.ApprovalApproved, approval.State)
	assert.Equal(t, "approver", approval.ApprovedBy)
	require.NotNil(t, approval.ApprovedAt)
	assert.Contains(t, approval.Comments, "please review")
	assert.Contains(t, approval.Comments, "looks good")

	// Terminal approvals reject further decisions.
	assert.Error(t, approval.MarkRejected("other", ""))
	assert.Error(t, approval.MarkCancelled("other", ""))
	assert.Equal(t, "approver", approval.ApprovedBy)

	rejected := model.NewWorkflowApproval("job-1", model.ApprovalDataPromotion, "submitter", "")
	require.NoError(t, rejected.MarkRejected("approver", "missing fields"))
	assert.Equal(t, model.ApprovalRejected, rejected.State)
	assert.Equal(t, "missing fields", rejected.Comments)
}

func TestDataException_MarkResolved(t *testing.T) {
	exc := model.NewDataException("job-1", "rule_application", "it broke", model.SeverityHigh, nil)
	assert.False(t, exc.Resolved)
	assert.NotNil(t, exc.Metadata)

	require.NoError(t, exc.MarkResolved("operator", "reran the job"))
	assert.True(t, exc.Resolved)
	assert.Equal(t, "operator", exc.ResolvedBy)
	assert.Equal(t, "reran the job", exc.ResolutionNotes)
	require.NotNil(t, exc.ResolvedAt)

	// The first resolution is never overwritten.
	err := exc.MarkResolved("someone-else", "different notes")
	assert.Error(t, err)
	assert.Equal(t, "operator", exc.ResolvedBy)
	assert.Equal(t, "reran the job", exc.ResolutionNotes)
}

func TestDataSource_ValidateConnectionConfig(t *testing.T) {
	api := model.NewDataSource("api", "", model.SourceTypeAPI, model.Metadata{"endpoint": "https://example.com"})
	assert.NoError(t, api.ValidateConnectionConfig())

	missing := model.NewDataSource("api", "", model.SourceTypeAPI, nil)
	assert.ErrorContains(t, missing.ValidateConnectionConfig(), "endpoint")

	swift := model.NewDataSource("swift", "", model.SourceTypeSwift, model.Metadata{"network": "test"})
	assert.NoError(t, swift.ValidateConnectionConfig())

	batch := model.NewDataSource("batch", "", model.SourceTypeBatch, model.Metadata{"format": "parquet"})
	assert.ErrorContains(t, batch.ValidateConnectionConfig(), "not supported")

	unknown := model.NewDataSource("x", "", "FTP", nil)
	assert.ErrorContains(t, unknown.ValidateConnectionConfig(), "unknown source type")
}

func TestDataSource_ActivationAndPromotion(t *testing.T) {
	source := model.NewDataSource("batch", "", model.SourceTypeBatch, model.Metadata{"format": "csv"})
	assert.False(t, source.IsActive)

	require.NoError(t, source.Activate())
	assert.True(t, source.IsActive)

	source.Deactivate()
	assert.False(t, source.IsActive)

	// Activation re-validates the current config.
	source.ConnectionConfig = model.Metadata{}
	assert.Error(t, source.Activate())
	assert.False(t, source.IsActive)

	assert.False(t, source.Promotable())
	source.ConnectionConfig["promotable"] = true
	assert.True(t, source.Promotable())
}

func TestParsePayload(t *testing.T) {
	// Bare array of objects.
	payload, err := model.ParsePayload([]interface{}{
		map[string]interface{}{"a": 1.0},
		map[string]interface{}{"a": 2.0},
	})
	require.NoError(t, err)
	assert.Len(t, payload, 2)

	// Envelope with a "data" array.
	payload, err = model.ParsePayload(map[string]interface{}{
		"data": []interface{}{map[string]interface{}{"a": 1.0}},
	})
	require.NoError(t, err)
	assert.Len(t, payload, 1)

	// A single object becomes a one-row payload.
	payload, err = model.ParsePayload(map[string]interface{}{"a": 1.0})
	require.NoError(t, err)
	require.Len(t, payload, 1)
	assert.Equal(t, 1.0, payload[0]["a"])

	// Non-object rows are rejected.
	_, err = model.ParsePayload([]interface{}{"scalar"})
	assert.Error(t, err)

	_, err = model.ParsePayload("scalar")
	assert.Error(t, err)
}

func TestSnapshotSchemaAndCompare(t *testing.T) {
	before := model.SnapshotSchema(model.Payload{
		{"id": 1.0, "name": "a", "extra": "x"},
		{"id": 2.0, "name": nil, "extra": "x"},
	})
	assert.Equal(t, 2, before.RowCount)
	require.Len(t, before.Columns, 3)

	byName := map[string]model.ColumnInfo{}
	for _, c := range before.Columns {
		byName[c.Name] = c
	}
	assert.Equal(t, "number", byName["id"].Type)
	assert.Equal(t, 2, byName["id"].UniqueCount)
	assert.Equal(t, 1, byName["name"].NullCount)
	assert.Equal(t, 1, byName["extra"].UniqueCount)

	after := model.SnapshotSchema(model.Payload{
		{"id": "1", "name": "a", "added": true},
	})

	diff := model.CompareSchemas(before, after)
	assert.Equal(t, []string{"added"}, diff.ColumnsAdded)
	assert.Equal(t, []string{"extra"}, diff.ColumnsRemoved)
	require.Len(t, diff.ColumnsModified, 1)
	assert.Equal(t, "id", diff.ColumnsModified[0].Column)
	assert.Equal(t, "number", diff.ColumnsModified[0].OldType)
	assert.Equal(t, "string", diff.ColumnsModified[0].NewType)
	assert.Equal(t, -1, diff.RowCountChange)
}

func TestSnapshotSchemaJSONNumber(t *testing.T) {
	// Batch JSON decodes numerics as json.Number; the snapshot must report
	// them as plain numbers, the same as API payload floats.
	schema := model.SnapshotSchema(model.Payload{
		{"count": json.Number("1"), "ratio": json.Number("0.5")},
	})
	require.Len(t, schema.Columns, 2)
	for _, column := range schema.Columns {
		assert.Equal(t, "number", column.Type)
	}
}

func TestPayloadCopyIsRowLevel(t *testing.T) {
	original := model.Payload{{"a": 1.0}}
	cloned := original.Copy()
	cloned[0]["a"] = 2.0
	assert.Equal(t, 1.0, original[0]["a"])
}

func TestRuleListCopy(t *testing.T) {
	rules := model.RuleList{
		{RuleType: model.RuleHandleNulls, Parameters: model.Metadata{"strategy": "drop"}},
	}
	cloned := rules.Copy()
	cloned[0].Parameters["strategy"] = "fill"
	assert.Equal(t, "drop", rules[0].Parameters["strategy"])
	assert.Equal(t, []string{"handle_nulls"}, rules.RuleTypes())
}
