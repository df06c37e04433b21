package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/generation"
	"z-novel-writer/internal/interfaces/http/dto"
	"z-novel-writer/pkg/logger"
)

// GenerationHandler 章节逐场景生成
type GenerationHandler struct {
	orchestrator *generation.Orchestrator
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(orchestrator *generation.Orchestrator) *GenerationHandler {
	return &GenerationHandler{orchestrator: orchestrator}
}

// StreamGenerate 以 SSE 推送生成事件
// @Summary 流式生成章节
// @Description 逐场景生成章节正文，事件名即事件类型
// @Tags Chapters
// @Produce text/event-stream
// @Param cid path string true "章节 ID"
// @Success 200 "SSE stream"
// @Router /v1/chapters/{cid}/generate/stream [post]
func (h *GenerationHandler) StreamGenerate(c *gin.Context) {
	chapterID, ok := pathParam(c, "cid")
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 请求上下文取消即视为客户端断开，编排器随之停止
	events := h.orchestrator.Generate(c.Request.Context(), chapterID)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return !ev.Type.Terminal()
		case <-c.Request.Context().Done():
			logger.Info(c.Request.Context(), "generation stream client disconnected", "chapter_id", chapterID)
			return false
		}
	})
}

// Generate 同步生成，返回完整正文
// @Summary 同步生成章节
// @Tags Chapters
// @Produce json
// @Param cid path string true "章节 ID"
// @Success 200 {object} dto.Response[dto.GenerateChapterResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/chapters/{cid}/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	chapterID, ok := pathParam(c, "cid")
	if !ok {
		return
	}

	res, err := h.orchestrator.GenerateSync(c.Request.Context(), chapterID)
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToGenerateChapterResponse(res))
}
