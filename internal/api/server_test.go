package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fluxgate/fluxgate/internal/api"
	"github.com/fluxgate/fluxgate/pkg/govern/adapter/storage"
	"github.com/fluxgate/fluxgate/pkg/govern/core/config"
	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	"github.com/fluxgate/fluxgate/pkg/govern/core/metrics"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/processor"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/rule"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/workflow"
	"github.com/fluxgate/fluxgate/pkg/govern/infrastructure/repository/inmemory"
	"github.com/fluxgate/fluxgate/pkg/govern/ingestion"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	"github.com/fluxgate/fluxgate/pkg/govern/track"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	router   *gin.Engine
	store    *inmemory.InMemoryStore
	tracker  *track.Tracker
	workflow *workflow.Engine
}

func newServer(t *testing.T, ingestCfg ingestion.Config) *server {
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

	archive, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	gateway := ingestion.NewGateway(store, store, recorder, archive, metrics.NewNopRecorder(), ingestCfg)

	cfg := config.NewConfig()
	cfg.Fluxgate.Server.Mode = gin.TestMode

	handler := api.NewHandler(gateway, proc, workflowEngine, tracker, recorder)
	router := api.NewRouter(cfg, handler, prometheus.NewRegistry())
	return &server{router: router, store: store, tracker: tracker, workflow: workflowEngine}
}

// startRun triggers an ingested job's run through the transform endpoint.
func (s *server) startRun(t *testing.T, jobID string, rules []map[string]interface{}) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/processing/jobs/"+jobID+"/transform",
		map[string]interface{}{"rules": rules}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (s *server) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error.Kind
}

func (s *server) createAPISource(t *testing.T, extra map[string]interface{}) string {
	t.Helper()
	cfgMap := map[string]interface{}{"endpoint": "https://example.com/feed"}
	for k, v := range extra {
		cfgMap[k] = v
	}
	rec := s.do(t, http.MethodPost, "/data-sources", map[string]interface{}{
		"name":              "orders feed",
		"source_type":       "API",
		"connection_config": cfgMap,
		"is_active":         true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		ID string `json:"id"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func (s *server) waitForJobStatus(t *testing.T, jobID, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := s.do(t, http.MethodGet, "/processing/jobs/"+jobID, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var job map[string]interface{}
		decode(t, rec, &job)
		if job["status"] == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestHealthz(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	rec := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSourceLifecycle(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	id := s.createAPISource(t, map[string]interface{}{"api_key": "sk-12345"})

	rec := s.do(t, http.MethodGet, "/data-sources/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var source map[string]interface{}
	decode(t, rec, &source)
	assert.Equal(t, "orders feed", source["name"])
	assert.Equal(t, "API", source["source_type"])
	assert.Equal(t, true, source["is_active"])

	// Sensitive connection_config keys never leave the API unmasked.
	cc := source["connection_config"].(map[string]interface{})
	assert.Equal(t, "https://example.com/feed", cc["endpoint"])
	assert.Equal(t, "********", cc["api_key"])

	rec = s.do(t, http.MethodGet, "/data-sources", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = s.do(t, http.MethodPut, "/data-sources/"+id, map[string]interface{}{
		"name":              "orders feed v2",
		"source_type":       "API",
		"connection_config": map[string]interface{}{"endpoint": "https://example.com/v2"},
		"is_active":         false,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &source)
	assert.Equal(t, "orders feed v2", source["name"])
	assert.Equal(t, false, source["is_active"])

	rec = s.do(t, http.MethodDelete, "/data-sources/"+id, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/data-sources/"+id, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "source_not_found", errorKind(t, rec))
}

func TestCreateSourceValidation(t *testing.T) {
	s := newServer(t, ingestion.Config{})

	req := httptest.NewRequest(http.MethodPost, "/data-sources", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, rec))

	resp := s.do(t, http.MethodPost, "/data-sources", map[string]interface{}{
		"name":        "broken",
		"source_type": "API",
		// endpoint missing from connection_config
		"connection_config": map[string]interface{}{},
		"is_active":         true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "validation", errorKind(t, resp))
}

func TestIngestAPIAndJobEndpoints(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	sourceID := s.createAPISource(t, nil)

	rec := s.do(t, http.MethodPost, "/ingestion/api", map[string]interface{}{
		"source_id": sourceID,
		"data":      []map[string]interface{}{{"a": 1}, {"a": 2}},
	}, map[string]string{"X-Caller-Id": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ref struct {
		JobID    string `json:"job_id"`
		Status   string `json:"status"`
		RowCount int    `json:"row_count"`
	}
	decode(t, rec, &ref)
	require.NotEmpty(t, ref.JobID)
	assert.Equal(t, 2, ref.RowCount)
	assert.Equal(t, "PENDING", ref.Status)

	s.startRun(t, ref.JobID, nil)
	job := s.waitForJobStatus(t, ref.JobID, "COMPLETED")
	assert.Equal(t, "alice", job["created_by"])
	assert.Equal(t, sourceID, job["source_id"])

	rec = s.do(t, http.MethodGet, "/processing/jobs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []map[string]interface{}
	decode(t, rec, &jobs)
	assert.Len(t, jobs, 1)

	rec = s.do(t, http.MethodGet, "/lineage/trace/"+ref.JobID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trace struct {
		JobID       string `json:"job_id"`
		TotalEvents int    `json:"total_events"`
	}
	decode(t, rec, &trace)
	assert.Equal(t, ref.JobID, trace.JobID)
	assert.GreaterOrEqual(t, trace.TotalEvents, 2)

	rec = s.do(t, http.MethodGet, "/lineage/source/"+sourceID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sourceTrace struct {
		SourceID    string `json:"source_id"`
		TotalEvents int    `json:"total_events"`
	}
	decode(t, rec, &sourceTrace)
	assert.Equal(t, sourceID, sourceTrace.SourceID)
	assert.GreaterOrEqual(t, sourceTrace.TotalEvents, 1)
}

func TestIngestAPIUnknownSource(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	rec := s.do(t, http.MethodPost, "/ingestion/api", map[string]interface{}{
		"source_id": "missing",
		"data":      []map[string]interface{}{{"a": 1}},
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "source_not_found", errorKind(t, rec))
}

func TestIngestBatchMultipart(t *testing.T) {
	s := newServer(t, ingestion.Config{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "records.csv")
	require.NoError(t, err)
	fmt.Fprint(part, "id,name\n1,alpha\n2,beta\n")
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingestion/batch", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ref struct {
		JobID    string `json:"job_id"`
		RowCount int    `json:"row_count"`
	}
	decode(t, rec, &ref)
	assert.Equal(t, 2, ref.RowCount)
	s.startRun(t, ref.JobID, nil)
	s.waitForJobStatus(t, ref.JobID, "COMPLETED")
}

func TestCancelCompletedJobConflicts(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	sourceID := s.createAPISource(t, nil)

	rec := s.do(t, http.MethodPost, "/ingestion/api", map[string]interface{}{
		"source_id": sourceID,
		"data":      []map[string]interface{}{{"a": 1}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var ref struct {
		JobID string `json:"job_id"`
	}
	decode(t, rec, &ref)
	s.startRun(t, ref.JobID, nil)
	s.waitForJobStatus(t, ref.JobID, "COMPLETED")

	rec = s.do(t, http.MethodPost, "/processing/jobs/"+ref.JobID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorKind(t, rec))
}

func TestApprovalEndpoints(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	sourceID := s.createAPISource(t, map[string]interface{}{"promotable": true})

	rec := s.do(t, http.MethodPost, "/ingestion/api", map[string]interface{}{
		"source_id": sourceID,
		"data":      []map[string]interface{}{{"a": 1}},
	}, map[string]string{"X-Caller-Id": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ref struct {
		JobID string `json:"job_id"`
	}
	decode(t, rec, &ref)
	s.startRun(t, ref.JobID, nil)

	// The processor suspends the job and submits a PENDING approval.
	var approvalID string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec = s.do(t, http.MethodGet, "/workflow/approvals?state=PENDING", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var approvals []map[string]interface{}
		decode(t, rec, &approvals)
		if len(approvals) == 1 {
			approvalID = approvals[0]["id"].(string)
			assert.Equal(t, ref.JobID, approvals[0]["job_id"])
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotEmpty(t, approvalID, "no PENDING approval appeared")

	rec = s.do(t, http.MethodPost, "/workflow/approvals/"+approvalID+"/approve",
		map[string]interface{}{"comments": "looks good"},
		map[string]string{"X-Caller-Id": "boss"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approval map[string]interface{}
	decode(t, rec, &approval)
	assert.Equal(t, "APPROVED", approval["state"])
	assert.Equal(t, "boss", approval["approved_by"])

	s.waitForJobStatus(t, ref.JobID, "COMPLETED")

	// A second decision against a terminal approval conflicts.
	rec = s.do(t, http.MethodPost, "/workflow/approvals/"+approvalID+"/reject",
		map[string]interface{}{"comments": "too late"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorKind(t, rec))
}

func TestApprovalDecisionBodies(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	ctx := context.Background()

	rejectable, err := s.workflow.Submit(ctx, "job-reject", model.ApprovalDataPromotion, "alice", "")
	require.NoError(t, err)

	// A rejection without an explanation is refused.
	rec := s.do(t, http.MethodPost, "/workflow/approvals/"+rejectable.ID+"/reject", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, rec))

	rec = s.do(t, http.MethodPost, "/workflow/approvals/"+rejectable.ID+"/reject",
		map[string]interface{}{"comments": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", errorKind(t, rec))

	rec = s.do(t, http.MethodPost, "/workflow/approvals/"+rejectable.ID+"/reject",
		map[string]interface{}{"comments": "schema drift unexplained"},
		map[string]string{"X-Caller-Id": "boss"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Approval comments are optional; a request without a body succeeds.
	approvable, err := s.workflow.Submit(ctx, "job-approve", model.ApprovalDataPromotion, "alice", "")
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/workflow/approvals/"+approvable.ID+"/approve", nil,
		map[string]string{"X-Caller-Id": "boss"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approval map[string]interface{}
	decode(t, rec, &approval)
	assert.Equal(t, "APPROVED", approval["state"])
	assert.Equal(t, "boss", approval["approved_by"])
}

func TestApproveUnknownApproval(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	rec := s.do(t, http.MethodPost, "/workflow/approvals/missing/approve",
		map[string]interface{}{"comments": ""}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec))
}

func TestExceptionEndpoints(t *testing.T) {
	s := newServer(t, ingestion.Config{})
	ctx := context.Background()

	exc, err := s.tracker.Record(ctx, "job-1", "rule_application", "rule 0 (normalize_text) failed", model.SeverityHigh, nil)
	require.NoError(t, err)
	_, err = s.tracker.Record(ctx, "", "schema_drift", "column added", model.SeverityLow, nil)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/exceptions?severity=HIGH", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "rule_application", list[0]["exception_type"])

	rec = s.do(t, http.MethodGet, "/exceptions?resolved=maybe", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/exceptions/"+exc.ID+"/resolve",
		map[string]interface{}{"resolution_notes": "reran with fixed rules"},
		map[string]string{"X-Caller-Id": "oncall"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved map[string]interface{}
	decode(t, rec, &resolved)
	assert.Equal(t, true, resolved["resolved"])
	assert.Equal(t, "oncall", resolved["resolved_by"])

	rec = s.do(t, http.MethodPost, "/exceptions/"+exc.ID+"/resolve",
		map[string]interface{}{"resolution_notes": "again"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_resolved", errorKind(t, rec))

	rec = s.do(t, http.MethodGet, "/exceptions/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Total      int `json:"total"`
		Resolved   int `json:"resolved"`
		Unresolved int `json:"unresolved"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 1, stats.Unresolved)
}
