package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fluxgate/fluxgate/internal/api/identity"
	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

func (h *Handler) listApprovals(c *gin.Context) {
	approvals, err := h.workflow.List(c.Request.Context(), model.ApprovalState(c.Query("state")))
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]approvalResponse, len(approvals))
	for i, a := range approvals {
		out[i] = toApprovalResponse(a)
	}
	c.JSON(http.StatusOK, out)
}

type decisionRequest struct {
	Comments string `json:"comments"`
}

type decisionFunc func(ctx context.Context, approvalID, decidedBy, comments string) (*model.WorkflowApproval, error)

func (h *Handler) decide(c *gin.Context, act decisionFunc, requireComments bool) {
	var req decisionRequest
	// Comments are optional, so a missing body is not an error.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, exception.New(exception.KindValidation, "api", "invalid request body", err))
		return
	}
	if requireComments && strings.TrimSpace(req.Comments) == "" {
		respondError(c, exception.New(exception.KindValidation, "api", "comments are required for a rejection", nil))
		return
	}
	caller := identity.FromContext(c.Request.Context())
	approval, err := act(c.Request.Context(), c.Param("id"), caller.ID, req.Comments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toApprovalResponse(approval))
}

func (h *Handler) approveApproval(c *gin.Context) {
	h.decide(c, h.workflow.Approve, false)
}

func (h *Handler) rejectApproval(c *gin.Context) {
	h.decide(c, h.workflow.Reject, true)
}

func (h *Handler) cancelApproval(c *gin.Context) {
	h.decide(c, h.workflow.Cancel, false)
}
