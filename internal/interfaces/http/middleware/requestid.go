package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-novel-writer/pkg/logger"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// 路由参数到日志字段的映射
var scopeParams = []struct {
	param string
	key   logger.ContextKey
}{
	{param: "pid", key: logger.ProjectIDKey},
	{param: "cid", key: logger.ChapterIDKey},
}

// RequestContext 注入请求 ID，并把路由中的项目/章节 ID 带入日志上下文，
// 生成流水线内的每条日志因此都能按章节检索
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		for _, sp := range scopeParams {
			if v := strings.TrimSpace(c.Param(sp.param)); v != "" {
				c.Set(string(sp.key), v)
				ctx = logger.WithContext(ctx, sp.key, v)
			}
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
