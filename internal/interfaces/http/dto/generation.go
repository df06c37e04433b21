package dto

import "z-novel-writer/internal/application/generation"

// GenerateChapterResponse 同步生成响应
type GenerateChapterResponse struct {
	GenerationID string                 `json:"generation_id"`
	ChapterID    string                 `json:"chapter_id"`
	Content      string                 `json:"content"`
	Scenes       []generation.SceneInfo `json:"scenes"`
	FailedScenes []int                  `json:"failed_scenes,omitempty"`
	Summary      generation.Summary     `json:"summary"`
}

// ToGenerateChapterResponse 转换同步生成结果
func ToGenerateChapterResponse(r *generation.Result) *GenerateChapterResponse {
	if r == nil {
		return nil
	}
	return &GenerateChapterResponse{
		GenerationID: r.GenerationID,
		ChapterID:    r.ChapterID,
		Content:      r.Content,
		Scenes:       r.Scenes,
		FailedScenes: r.Failed,
		Summary:      r.Summary,
	}
}
