package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fluxgate/fluxgate/internal/api/identity"
	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	repository "github.com/fluxgate/fluxgate/pkg/govern/core/domain/repository"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

func (h *Handler) listExceptions(c *gin.Context) {
	filter := repository.ExceptionFilter{
		JobID:    c.Query("job_id"),
		Severity: model.ExceptionSeverity(c.Query("severity")),
	}
	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, exception.New(exception.KindValidation, "api", "resolved must be a boolean", err))
			return
		}
		filter.Resolved = &resolved
	}

	exceptions, err := h.tracker.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]exceptionResponse, len(exceptions))
	for i, e := range exceptions {
		out[i] = toExceptionResponse(e)
	}
	c.JSON(http.StatusOK, out)
}

type resolveRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

func (h *Handler) resolveException(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	caller := identity.FromContext(c.Request.Context())
	exc, err := h.tracker.Resolve(c.Request.Context(), c.Param("id"), caller.ID, req.ResolutionNotes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toExceptionResponse(exc))
}

func (h *Handler) exceptionStats(c *gin.Context) {
	stats, err := h.tracker.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
