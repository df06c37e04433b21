package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/interfaces/http/dto"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
)

// Recovery panic 恢复。事件流已开始推送时响应头已写出，只能中断连接
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered", fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"method", c.Request.Method,
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
				Code:    http.StatusInternalServerError,
				Message: "internal server error",
				Error:   &dto.ErrorDetail{ErrorCode: string(apperrors.CodeInternalError)},
				TraceID: c.GetString("trace_id"),
			})
		}()

		c.Next()
	}
}
