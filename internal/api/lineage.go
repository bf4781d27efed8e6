package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) traceLineage(c *gin.Context) {
	trace, err := h.recorder.AssembleTrace(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

func (h *Handler) sourceLineage(c *gin.Context) {
	events, err := h.recorder.FindBySource(c.Request.Context(), c.Param("sourceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]gin.H, len(events))
	for i, e := range events {
		out[i] = gin.H{
			"id":         e.ID,
			"job_id":     e.JobID,
			"event_type": e.EventType.String(),
			"timestamp":  e.Timestamp,
			"metadata":   e.Metadata,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"source_id":    c.Param("sourceId"),
		"total_events": len(events),
		"events":       out,
	})
}
