package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/pkg/logger"
)

// TraceIDHeader 响应中回传的 trace ID
const TraceIDHeader = "X-Trace-ID"

// Trace OpenTelemetry 追踪中间件
func Trace(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// TraceContext 把 trace/span ID 写入日志上下文，并给 span 标注项目与章节
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		sc := span.SpanContext()
		if !sc.IsValid() {
			c.Next()
			return
		}

		traceID := sc.TraceID().String()
		c.Set("trace_id", traceID)
		c.Header(TraceIDHeader, traceID)

		ctx := logger.WithContext(c.Request.Context(), logger.TraceIDKey, traceID)
		ctx = logger.WithContext(ctx, logger.SpanIDKey, sc.SpanID().String())
		c.Request = c.Request.WithContext(ctx)

		if pid := c.GetString(string(logger.ProjectIDKey)); pid != "" {
			span.SetAttributes(attribute.String("novel.project_id", pid))
		}
		if cid := c.GetString(string(logger.ChapterIDKey)); cid != "" {
			span.SetAttributes(attribute.String("novel.chapter_id", cid))
		}

		c.Next()
	}
}
