package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spotivault/spotivault/internal/monitoring"
)

// NewRouter builds the gin engine with recovery, request metrics, and all
// dashboard routes registered.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestMetrics(logger))

	h.RegisterRoutes(r)
	return r
}

// requestMetrics records per-route counters and latency. The route template
// is used as the label, not the raw path, to keep cardinality bounded.
func requestMetrics(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		monitoring.RecordHTTPRequest(route, strconv.Itoa(status), time.Since(start))

		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)))
	}
}
