package dto

import (
	"z-novel-writer/internal/application/synthesis"
	"z-novel-writer/internal/domain/entity"
)

// SynthesizeOutlinesRequest 章节大纲合成请求
type SynthesizeOutlinesRequest struct {
	TargetCount int    `json:"target_count" binding:"omitempty,min=1,max=20"`
	StartIndex  *int   `json:"start_index,omitempty" binding:"omitempty,min=0"`
	Guidance    string `json:"guidance,omitempty" binding:"max=4000"`
	Persist     bool   `json:"persist,omitempty"`
}

// ToInput 转换为应用层输入；未指定起点时接在已有大纲之后
func (r *SynthesizeOutlinesRequest) ToInput(projectID string) synthesis.GenerateInput {
	start := -1
	if r.StartIndex != nil {
		start = *r.StartIndex
	}
	return synthesis.GenerateInput{
		ProjectID:   projectID,
		TargetCount: r.TargetCount,
		StartIndex:  start,
		Guidance:    r.Guidance,
		Persist:     r.Persist,
	}
}

// HypothesisSetSummary 单次尝试概况
type HypothesisSetSummary struct {
	Attempt     int     `json:"attempt"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	Candidates  int     `json:"candidates"`
	Mean        float64 `json:"mean_score"`
}

// SynthesizeOutlinesResponse 章节大纲合成响应
type SynthesizeOutlinesResponse struct {
	Outlines []entity.OutlinePayload `json:"outlines"`
	Sets     []HypothesisSetSummary  `json:"sets"`
	BaseSet  int                     `json:"base_set"`
	Dropped  int                     `json:"dropped_attempts"`
}

// ToSynthesizeOutlinesResponse 转换合成结果
func ToSynthesizeOutlinesResponse(r *synthesis.Result) *SynthesizeOutlinesResponse {
	if r == nil {
		return nil
	}
	resp := &SynthesizeOutlinesResponse{
		Outlines: r.Outlines,
		BaseSet:  r.BaseSet,
		Dropped:  r.Dropped,
		Sets:     make([]HypothesisSetSummary, 0, len(r.Sets)),
	}
	for _, s := range r.Sets {
		resp.Sets = append(resp.Sets, HypothesisSetSummary{
			Attempt:     s.Attempt,
			Provider:    s.Provider,
			Temperature: s.Temperature,
			Candidates:  len(s.Candidates),
			Mean:        s.Mean,
		})
	}
	return resp
}
