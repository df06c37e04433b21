package dto

import "z-novel-writer/internal/application/retrieval"

// RetrieveRequest 检索调试请求
type RetrieveRequest struct {
	ChapterID  string `json:"chapter_id" binding:"required"`
	Query      string `json:"query" binding:"required,max=5000"`
	TopK       int    `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
	TimeWindow int    `json:"time_window,omitempty" binding:"omitempty,min=1"`
}

// ToInput 转换为应用层输入
func (r *RetrieveRequest) ToInput(projectID string) retrieval.RetrieveInput {
	return retrieval.RetrieveInput{
		ProjectID:        projectID,
		CurrentChapterID: r.ChapterID,
		Query:            r.Query,
		TopK:             r.TopK,
		TimeWindow:       r.TimeWindow,
	}
}

// RetrieveResponse 检索调试响应
type RetrieveResponse struct {
	Contexts       []retrieval.RetrievedContext `json:"contexts"`
	Prompt         string                       `json:"prompt"`
	Mode           string                       `json:"mode"`
	FallbackReason string                       `json:"fallback_reason,omitempty"`
	Debug          *retrieval.DebugInfo         `json:"debug,omitempty"`
}

// ToRetrieveResponse 转换检索结果
func ToRetrieveResponse(out *retrieval.RetrieveOutput) *RetrieveResponse {
	if out == nil {
		return nil
	}
	contexts := out.Contexts
	if contexts == nil {
		contexts = []retrieval.RetrievedContext{}
	}
	return &RetrieveResponse{
		Contexts:       contexts,
		Prompt:         out.Prompt,
		Mode:           string(out.Mode),
		FallbackReason: out.FallbackReason,
		Debug:          out.Debug,
	}
}
