package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

func (h *Handler) listJobs(c *gin.Context) {
	jobs, err := h.processor.ListJobs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]jobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = toJobResponse(j)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getJob(c *gin.Context) {
	job, err := h.processor.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}

type transformRequest struct {
	Rules []model.TransformationRule `json:"rules"`
}

func (h *Handler) applyRules(c *gin.Context) {
	var req transformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	if err := h.processor.ApplyTransformationRules(c.Request.Context(), c.Param("id"), model.RuleList(req.Rules)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func (h *Handler) retryJob(c *gin.Context) {
	job, err := h.processor.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobReference(job))
}

func (h *Handler) cancelJob(c *gin.Context) {
	if err := h.processor.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancellation accepted"})
}
