package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-writer/pkg/metrics"
)

// Metrics 按路由模板采集请求数与耗时；事件流另外计入活跃流数量，
// 其耗时即整次章节生成的耗时
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		streaming := strings.HasSuffix(route, "/stream")
		if streaming {
			metrics.SSEStreamsActive.WithLabelValues(route).Inc()
			defer metrics.SSEStreamsActive.WithLabelValues(route).Dec()
		}

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
