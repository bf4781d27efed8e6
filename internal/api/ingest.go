package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fluxgate/fluxgate/internal/api/identity"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

type apiIngestRequest struct {
	SourceID string      `json:"source_id"`
	Data     interface{} `json:"data"`
}

func (h *Handler) ingestAPI(c *gin.Context) {
	var req apiIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	caller := identity.FromContext(c.Request.Context())
	job, err := h.gateway.IngestAPI(c.Request.Context(), req.SourceID, req.Data, caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobReference(job))
}

type swiftIngestRequest struct {
	MessageType    string `json:"message_type"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
	MessageContent string `json:"message_content"`
}

func (h *Handler) ingestSwift(c *gin.Context) {
	var req swiftIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	caller := identity.FromContext(c.Request.Context())
	job, err := h.gateway.IngestMessage(c.Request.Context(), req.MessageType, req.Sender, req.Receiver, req.MessageContent, caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobReference(job))
}

func (h *Handler) ingestBatch(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "multipart file field is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, exception.New(exception.KindValidation, "api", "failed to open uploaded file", err))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		respondError(c, exception.New(exception.KindInternal, "api", "failed to read uploaded file", err))
		return
	}

	caller := identity.FromContext(c.Request.Context())
	job, err := h.gateway.IngestBatch(c.Request.Context(), fileHeader.Filename, content, c.PostForm("source_id"), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toJobReference(job))
}
