package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fluxgate/fluxgate/internal/api/identity"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

// principalMiddleware parses the caller identity headers into a Principal
// on the request context. Missing headers fall back to the anonymous
// principal; this layer trusts the identity it is handed.
func principalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := identity.Anonymous
		if id := c.GetHeader("X-Caller-Id"); id != "" {
			p = identity.Principal{
				ID:   id,
				Role: c.GetHeader("X-Caller-Role"),
			}
		}
		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// requestLogger logs each request with its latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
