package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/synthesis"
	"z-novel-writer/internal/interfaces/http/dto"
)

// OutlineHandler 章节大纲合成
type OutlineHandler struct {
	service *synthesis.Service
}

// NewOutlineHandler 创建大纲处理器
func NewOutlineHandler(service *synthesis.Service) *OutlineHandler {
	return &OutlineHandler{service: service}
}

// Synthesize 多次采样合成后续章节大纲
// @Summary 合成章节大纲
// @Tags Outlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.SynthesizeOutlinesRequest true "合成参数"
// @Success 200 {object} dto.Response[dto.SynthesizeOutlinesResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/outlines/synthesize [post]
func (h *OutlineHandler) Synthesize(c *gin.Context) {
	projectID, ok := pathParam(c, "pid")
	if !ok {
		return
	}

	var req dto.SynthesizeOutlinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	res, err := h.service.GenerateChapterOutlines(c.Request.Context(), req.ToInput(projectID))
	if err != nil {
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToSynthesizeOutlinesResponse(res))
}
