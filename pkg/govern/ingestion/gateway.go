package ingestion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fluxgate/fluxgate/pkg/govern/adapter/storage"
	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	"github.com/fluxgate/fluxgate/pkg/govern/core/metrics"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

const moduleName = "ingestion_gateway"

// Config adjusts gateway behavior.
type Config struct {
	// DefaultRequiresApproval gates every ingested job behind a
	// DATA_PROMOTION approval even when its source does not declare a
	// promotable destination.
	DefaultRequiresApproval bool
}

// Gateway is the only creation path for processing jobs. It converts
// external inputs (API JSON, SWIFT messages, batch files) into PENDING jobs
// and records the ingestion lineage event. The job stays PENDING until a
// transform request installs its rule list and starts the run.
type Gateway struct {
	sources  repository.DataSourceRepository
	jobs     repository.JobRepository
	recorder *lineage.Recorder
	archive  storage.ObjectStore
	metrics  metrics.MetricRecorder
	cfg      Config
}

// NewGateway creates an ingestion gateway.
func NewGateway(
	sources repository.DataSourceRepository,
	jobs repository.JobRepository,
	recorder *lineage.Recorder,
	archive storage.ObjectStore,
	recorder2 metrics.MetricRecorder,
	cfg Config,
) *Gateway {
	return &Gateway{
		sources:  sources,
		jobs:     jobs,
		recorder: recorder,
		archive:  archive,
		metrics:  recorder2,
		cfg:      cfg,
	}
}

// IngestAPI accepts a JSON payload pushed against a configured API source.
func (g *Gateway) IngestAPI(ctx context.Context, sourceID string, data interface{}, createdBy string) (*model.ProcessingJob, error) {
	source, err := g.resolveActiveSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	payload, err := model.ParsePayload(data)
	if err != nil {
		return nil, exception.New(exception.KindValidation, moduleName, "payload could not be parsed", err)
	}

	name := fmt.Sprintf("API Ingestion - %s", source.Name)
	metadata := model.Metadata{"source_type": source.SourceType.String()}
	return g.createJob(ctx, name, "", source, payload, createdBy, metadata)
}

// IngestMessage accepts a SWIFT-style financial message and flattens its
// tagged fields into a single-row payload.
func (g *Gateway) IngestMessage(ctx context.Context, messageType, sender, receiver, content, createdBy string) (*model.ProcessingJob, error) {
	if messageType == "" {
		return nil, exception.New(exception.KindValidation, moduleName, "message_type is required", nil)
	}
	if strings.TrimSpace(content) == "" {
		return nil, exception.New(exception.KindValidation, moduleName, "message_content is required", nil)
	}

	payload, err := parseSwiftMessage(messageType, sender, receiver, content)
	if err != nil {
		return nil, exception.New(exception.KindValidation, moduleName, "message could not be parsed", err)
	}

	name := fmt.Sprintf("SWIFT %s - %s", messageType, sender)
	metadata := model.Metadata{
		"source_type":  model.SourceTypeSwift.String(),
		"message_type": messageType,
		"sender":       sender,
		"receiver":     receiver,
	}
	return g.createJob(ctx, name, "", nil, payload, createdBy, metadata)
}

// IngestBatch accepts an uploaded batch file. The raw bytes are archived
// before parsing so the exact input of a job can always be retrieved.
func (g *Gateway) IngestBatch(ctx context.Context, filename string, content []byte, sourceID, createdBy string) (*model.ProcessingJob, error) {
	if len(content) == 0 {
		return nil, exception.New(exception.KindValidation, moduleName, "batch file is empty", nil)
	}

	var source *model.DataSource
	if sourceID != "" {
		var err error
		source, err = g.resolveActiveSource(ctx, sourceID)
		if err != nil {
			return nil, err
		}
	}

	format := batchFormat(source, filename)
	payload, err := decodeBatch(content, format)
	if err != nil {
		return nil, exception.New(exception.KindValidation, moduleName, fmt.Sprintf("batch file could not be parsed as %s", format), err)
	}

	key := fmt.Sprintf("batch/%s/%s", model.NewID(), filepath.Base(filename))
	location, err := g.archive.Put(ctx, key, content, contentTypeFor(format))
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("Batch Ingestion - %s", filepath.Base(filename))
	metadata := model.Metadata{
		"source_type":      model.SourceTypeBatch.String(),
		"filename":         filepath.Base(filename),
		"format":           format,
		"archive_location": location,
	}
	return g.createJob(ctx, name, "", source, payload, createdBy, metadata)
}

func (g *Gateway) createJob(ctx context.Context, name, description string, source *model.DataSource, payload model.Payload, createdBy string, metadata model.Metadata) (*model.ProcessingJob, error) {
	sourceID := ""
	sourceType := ""
	requiresApproval := g.cfg.DefaultRequiresApproval
	if source != nil {
		sourceID = source.ID
		sourceType = source.SourceType.String()
		if source.Promotable() {
			requiresApproval = true
		}
	} else if st, ok := metadata.GetString("source_type"); ok {
		sourceType = st
	}

	job := model.NewProcessingJob(name, description, sourceID, payload, createdBy)
	job.RequiresApproval = requiresApproval
	if err := g.jobs.SaveJob(ctx, job); err != nil {
		return nil, exception.New(exception.KindInternal, moduleName, "failed to persist job", err)
	}

	schema := model.SnapshotSchema(payload)
	if err := g.recorder.RecordIngestion(ctx, job.ID, sourceID, &schema, metadata); err != nil {
		return nil, err
	}

	g.metrics.JobIngested(sourceType)
	logger.Infof("Job ingested (ID: %s, name: %s, rows: %d, requires_approval: %t).", job.ID, name, len(payload), requiresApproval)
	return job, nil
}

func (g *Gateway) resolveActiveSource(ctx context.Context, sourceID string) (*model.DataSource, error) {
	source, err := g.sources.FindDataSourceByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrDataSourceNotFound) {
			return nil, exception.Newf(exception.KindSourceNotFound, moduleName, "data source not found (ID: %s)", sourceID)
		}
		return nil, exception.New(exception.KindInternal, moduleName, "failed to load data source", err)
	}
	if !source.IsActive {
		return nil, exception.Newf(exception.KindSourceNotFound, moduleName, "data source %s is not active", sourceID)
	}
	return source, nil
}

// batchFormat picks the parse format: the source's declared format wins,
// otherwise the file extension decides, defaulting to csv.
func batchFormat(source *model.DataSource, filename string) string {
	if source != nil {
		if format, ok := source.ConnectionConfig.GetString("format"); ok && format != "" {
			return format
		}
	}
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return "json"
	}
	return "csv"
}

func contentTypeFor(format string) string {
	if format == "json" {
		return "application/json"
	}
	return "text/csv"
}
