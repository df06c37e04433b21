// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/interfaces/http/dto"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
)

// respondError 按 AppError 的 HTTP 状态返回统一错误体；5xx 记录日志
func respondError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", err,
			"path", c.FullPath(),
			"code", string(appErr.Code),
		)
	}
	dto.ErrorWithDetail(c, status, appErr.Message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
	})
}

func pathParam(c *gin.Context, name string) (string, bool) {
	v := strings.TrimSpace(c.Param(name))
	if v == "" {
		dto.BadRequest(c, name+" is required")
		return "", false
	}
	return v, true
}
