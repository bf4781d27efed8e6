package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(kind exception.Kind) int {
	switch kind {
	case exception.KindValidation:
		return http.StatusBadRequest
	case exception.KindNotFound, exception.KindSourceNotFound:
		return http.StatusNotFound
	case exception.KindInvalidState, exception.KindDuplicateApproval, exception.KindAlreadyResolved:
		return http.StatusConflict
	case exception.KindRuleApplication:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError renders a structured error: kind plus a human message, so
// the boundary can render failures without domain knowledge of internal
// states.
func respondError(c *gin.Context, err error) {
	kind := exception.KindOf(err)
	c.JSON(statusFor(kind), gin.H{
		"error": gin.H{
			"kind":    string(kind),
			"message": exception.ExtractErrorMessage(err),
		},
	})
}
