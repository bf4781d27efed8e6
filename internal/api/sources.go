package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	"github.com/fluxgate/fluxgate/pkg/govern/ingestion"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

type sourceRequest struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	SourceType       string                 `json:"source_type"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	IsActive         bool                   `json:"is_active"`
}

func (r sourceRequest) toInput() ingestion.SourceInput {
	return ingestion.SourceInput{
		Name:             r.Name,
		Description:      r.Description,
		SourceType:       model.SourceType(r.SourceType),
		ConnectionConfig: model.Metadata(r.ConnectionConfig),
		IsActive:         r.IsActive,
	}
}

func (h *Handler) listSources(c *gin.Context) {
	sources, err := h.gateway.ListSources(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]sourceResponse, len(sources))
	for i, s := range sources {
		out[i] = toSourceResponse(s)
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	source, err := h.gateway.CreateSource(c.Request.Context(), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSourceResponse(source))
}

func (h *Handler) getSource(c *gin.Context) {
	source, err := h.gateway.GetSource(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSourceResponse(source))
}

func (h *Handler) updateSource(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	source, err := h.gateway.UpdateSource(c.Request.Context(), c.Param("id"), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSourceResponse(source))
}

func (h *Handler) deleteSource(c *gin.Context) {
	if err := h.gateway.DeleteSource(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
