package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/fluxgate/fluxgate/pkg/govern/core/config"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/processor"
	"github.com/fluxgate/fluxgate/pkg/govern/engine/workflow"
	"github.com/fluxgate/fluxgate/pkg/govern/ingestion"
	"github.com/fluxgate/fluxgate/pkg/govern/lineage"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
	"github.com/fluxgate/fluxgate/pkg/govern/track"
)

// Handler carries the services the HTTP surface exposes.
type Handler struct {
	gateway   *ingestion.Gateway
	processor *processor.Processor
	workflow  *workflow.Engine
	tracker   *track.Tracker
	recorder  *lineage.Recorder
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	gateway *ingestion.Gateway,
	proc *processor.Processor,
	workflowEngine *workflow.Engine,
	tracker *track.Tracker,
	recorder *lineage.Recorder,
) *Handler {
	return &Handler{
		gateway:   gateway,
		processor: proc,
		workflow:  workflowEngine,
		tracker:   tracker,
		recorder:  recorder,
	}
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg *config.Config, h *Handler, registry *prometheus.Registry) *gin.Engine {
	if cfg.Fluxgate.Server.Mode != "" {
		gin.SetMode(cfg.Fluxgate.Server.Mode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), principalMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	sources := router.Group("/data-sources")
	{
		sources.GET("", h.listSources)
		sources.POST("", h.createSource)
		sources.GET("/:id", h.getSource)
		sources.PUT("/:id", h.updateSource)
		sources.DELETE("/:id", h.deleteSource)
	}

	ingest := router.Group("/ingestion")
	{
		ingest.POST("/api", h.ingestAPI)
		ingest.POST("/swift", h.ingestSwift)
		ingest.POST("/batch", h.ingestBatch)
	}

	jobs := router.Group("/processing/jobs")
	{
		jobs.GET("", h.listJobs)
		jobs.GET("/:id", h.getJob)
		jobs.POST("/:id/transform", h.applyRules)
		jobs.POST("/:id/retry", h.retryJob)
		jobs.POST("/:id/cancel", h.cancelJob)
	}

	exceptions := router.Group("/exceptions")
	{
		exceptions.GET("", h.listExceptions)
		exceptions.GET("/stats", h.exceptionStats)
		exceptions.POST("/:id/resolve", h.resolveException)
	}

	approvals := router.Group("/workflow/approvals")
	{
		approvals.GET("", h.listApprovals)
		approvals.POST("/:id/approve", h.approveApproval)
		approvals.POST("/:id/reject", h.rejectApproval)
		approvals.POST("/:id/cancel", h.cancelApproval)
	}

	lineageGroup := router.Group("/lineage")
	{
		lineageGroup.GET("/trace/:jobId", h.traceLineage)
		lineageGroup.GET("/source/:sourceId", h.sourceLineage)
	}

	return router
}

// StartServer ties the HTTP server to the application lifecycle.
func StartServer(lc fx.Lifecycle, cfg *config.Config, router *gin.Engine) {
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Fluxgate.Server.Host, cfg.Fluxgate.Server.Port),
		Handler: router,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Infof("HTTP server listening on %s.", server.Addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Errorf("HTTP server stopped: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// Module provides the HTTP surface.
var Module = fx.Options(
	fx.Provide(NewHandler, NewRouter),
	fx.Invoke(StartServer),
)
