package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/infrastructure/persistence/milvus"
	"z-novel-writer/internal/infrastructure/persistence/postgres"
	"z-novel-writer/internal/infrastructure/persistence/redis"
)

const readinessTimeout = 2 * time.Second

// HealthHandler 存活与就绪检查。
// Postgres 存章节与大纲、Redis 承载向量化任务队列，二者缺一不可；
// Milvus 只影响语义检索，检索会退化为按近因取章节，因此不计入就绪态
type HealthHandler struct {
	pg      *postgres.Client
	redis   *redis.Client
	milvus  *milvus.Client
	version string
}

// NewHealthHandler 创建健康检查处理器，任一客户端可为 nil
func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *HealthHandler {
	return &HealthHandler{pg: pg, redis: redisClient, milvus: milvusClient}
}

// SetVersion 设置 /health 返回的版本号
func (h *HealthHandler) SetVersion(v string) {
	h.version = v
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

type dependencyCheck struct {
	name     string
	required bool
	// check 为 nil 表示未配置
	check func(context.Context) error
}

func (h *HealthHandler) dependencyChecks() []dependencyCheck {
	checks := []dependencyCheck{
		{name: "postgres", required: true},
		{name: "redis", required: true},
		{name: "milvus"},
	}
	if h.pg != nil {
		checks[0].check = h.pg.HealthCheck
	}
	if h.redis != nil {
		checks[1].check = h.redis.HealthCheck
	}
	if h.milvus != nil {
		checks[2].check = h.milvus.HealthCheck
	}
	return checks
}

// Health 进程健康
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 依赖就绪检查；必需依赖缺失或失败时返回 503
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := readinessResponse{Status: "ok", Checks: make(map[string]*readinessCheck)}
	for _, p := range h.dependencyChecks() {
		result := runCheck(ctx, p)
		resp.Checks[p.name] = result
		if p.required && result.Status != "ok" {
			resp.Status = "not_ready"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func runCheck(ctx context.Context, p dependencyCheck) *readinessCheck {
	if p.check == nil {
		if p.required {
			return &readinessCheck{Status: "missing", Error: p.name + " client not configured"}
		}
		return &readinessCheck{Status: "disabled"}
	}
	start := time.Now()
	err := p.check(ctx)
	res := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Error = err.Error()
		res.Status = "error"
		if !p.required {
			res.Status = "degraded"
		}
	}
	return res
}

// Live 存活检查
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
