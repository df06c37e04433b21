package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/internal/interfaces/http/dto"
	apperrors "z-novel-writer/pkg/errors"
)

// RetrievalHandler 检索调试
type RetrievalHandler struct {
	engine *retrieval.Engine
}

// NewRetrievalHandler 创建检索处理器
func NewRetrievalHandler(engine *retrieval.Engine) *RetrievalHandler {
	return &RetrievalHandler{engine: engine}
}

// Retrieve 返回带调试信息的检索结果
// @Summary 检索调试
// @Tags Retrieval
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.RetrieveRequest true "检索请求"
// @Success 200 {object} dto.Response[dto.RetrieveResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/retrieve [post]
func (h *RetrievalHandler) Retrieve(c *gin.Context) {
	projectID, ok := pathParam(c, "pid")
	if !ok {
		return
	}

	var req dto.RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	out, err := h.engine.Search(c.Request.Context(), req.ToInput(projectID))
	if err != nil {
		if errors.Is(err, retrieval.ErrChapterNotFound) {
			err = apperrors.ErrChapterNotFound.WithError(err)
		} else {
			err = apperrors.Wrap(err, apperrors.CodeRetrievalFailed, "retrieval failed")
		}
		respondError(c, err)
		return
	}
	dto.Success(c, dto.ToRetrieveResponse(out))
}
