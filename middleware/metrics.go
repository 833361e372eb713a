package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/aiblog/metrics"
)

// HTTPMetrics records request count and latency by route template.
func HTTPMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if m == nil {
			ctx.Next()
			return
		}
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(ctx.Request.Context(), ctx.Request.Method, path, ctx.Writer.Status(), time.Since(start))
	}
}
