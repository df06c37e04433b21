// Package synthesis 生成多组候选章节大纲，按主题/推进/可写性独立打分，并融合为最终结果。
package synthesis

import (
	"errors"
	"strings"

	"z-novel-writer/internal/domain/entity"
)

// ErrNoHypotheses 所有尝试均失败或解析失败
var ErrNoHypotheses = errors.New("no outline hypothesis survived")

// CandidateOutline 一条候选大纲
type CandidateOutline struct {
	Title            string   `json:"title"`
	OneLiner         string   `json:"oneLiner"`
	Beats            []string `json:"beats"`
	ThemeTags        []string `json:"themeTags"`
	ConflictFocus    string   `json:"conflictFocus"`
	ConflictCategory string   `json:"conflictCategory"`
	RequiredEntities []string `json:"requiredEntities"`
	FocalEntities    []string `json:"focalEntities"`
	StakesDelta      string   `json:"stakesDelta"`
	EntryState       string   `json:"entryState"`
	ExitState        string   `json:"exitState"`
}

// Text 用于主题匹配的渲染文本
func (c *CandidateOutline) Text() string {
	parts := make([]string, 0, 4+len(c.Beats))
	parts = append(parts, c.Title, c.OneLiner, c.ConflictFocus, c.StakesDelta)
	parts = append(parts, c.Beats...)
	return strings.Join(parts, "\n")
}

// Payload 转为持久化形状
func (c *CandidateOutline) Payload(orderIndex int) entity.OutlinePayload {
	return entity.OutlinePayload{
		Title:            strings.TrimSpace(c.Title),
		OneLiner:         strings.TrimSpace(c.OneLiner),
		Beats:            append([]string(nil), c.Beats...),
		ThemeTags:        append([]string(nil), c.ThemeTags...),
		RequiredEntities: append([]string(nil), c.RequiredEntities...),
		FocalEntities:    append([]string(nil), c.FocalEntities...),
		StakesDelta:      strings.TrimSpace(c.StakesDelta),
		EntryState:       strings.TrimSpace(c.EntryState),
		ExitState:        strings.TrimSpace(c.ExitState),
		ConflictFocus:    strings.TrimSpace(c.ConflictFocus),
		OrderIndex:       orderIndex,
	}
}

func (c CandidateOutline) clone() CandidateOutline {
	c.Beats = append([]string(nil), c.Beats...)
	c.ThemeTags = append([]string(nil), c.ThemeTags...)
	c.RequiredEntities = append([]string(nil), c.RequiredEntities...)
	c.FocalEntities = append([]string(nil), c.FocalEntities...)
	return c
}

// ScoredCandidate 带三项子分与加权总分的候选
type ScoredCandidate struct {
	Candidate   CandidateOutline `json:"candidate"`
	Theme       float64          `json:"theme"`
	Progression float64          `json:"progression"`
	Writability float64          `json:"writability"`
	Total       float64          `json:"total"`
}

// HypothesisSet 一次尝试产出的一组候选
type HypothesisSet struct {
	Attempt     int               `json:"attempt"`
	Provider    string            `json:"provider"`
	Temperature float64           `json:"temperature"`
	Candidates  []ScoredCandidate `json:"candidates"`
	Mean        float64           `json:"mean"`
}

// Request 合成请求
type Request struct {
	ProjectTitle  string
	Genre         string
	PromptContext string
	ThemeTags     []string
	TargetCount   int
	StartIndex    int
	// Previous 紧邻第一条候选之前的已有大纲，作为位置 0 的推进参照，可为空
	Previous *CandidateOutline
}

// Result 合成结果
type Result struct {
	Outlines []entity.OutlinePayload `json:"outlines"`
	Sets     []HypothesisSet         `json:"sets"`
	BaseSet  int                     `json:"base_set"`
	Dropped  int                     `json:"dropped"`
}
