// Package middleware 提供 HTTP 中间件
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/config"
)

// 生成事件流断线重连时浏览器会带上 Last-Event-ID
var (
	defaultCORSMethods = []string{"GET", "POST", "OPTIONS"}
	defaultCORSHeaders = []string{"Origin", "Content-Type", "Accept", "Cache-Control", "Last-Event-ID", RequestIDHeader}
	exposedHeaders     = []string{RequestIDHeader, TraceIDHeader}
)

// CORS 跨域中间件。未配置来源时放开所有来源，但不允许携带凭证
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowOrigins:  cfg.AllowedOrigins,
		AllowMethods:  cfg.AllowedMethods,
		AllowHeaders:  cfg.AllowedHeaders,
		ExposeHeaders: exposedHeaders,
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = defaultCORSMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = defaultCORSHeaders
	}
	if len(c.AllowOrigins) == 0 || (len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*") {
		c.AllowOrigins = nil
		c.AllowAllOrigins = true
	} else {
		c.AllowCredentials = true
	}
	return cors.New(c)
}
