package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"z-novel-writer/internal/application/story/storyutil"
)

type outlineEnvelope struct {
	Outlines []CandidateOutline `json:"outlines"`
}

// ParseCandidates 从模型输出中解析候选大纲。
// 接受 JSON 数组或 {"outlines": [...]}；缺少标题与概要或没有节拍的条目被丢弃。
func ParseCandidates(raw string) ([]CandidateOutline, error) {
	js := strings.TrimSpace(storyutil.ExtractJSON(raw))
	if js == "" {
		return nil, fmt.Errorf("empty outline output")
	}

	var items []CandidateOutline
	switch js[0] {
	case '[':
		if err := json.Unmarshal([]byte(js), &items); err != nil {
			return nil, fmt.Errorf("decode outline array: %w", err)
		}
	case '{':
		var env outlineEnvelope
		if err := json.Unmarshal([]byte(js), &env); err != nil {
			return nil, fmt.Errorf("decode outline object: %w", err)
		}
		items = env.Outlines
	default:
		return nil, fmt.Errorf("outline output is not JSON")
	}

	out := make([]CandidateOutline, 0, len(items))
	for _, it := range items {
		c := normalizeCandidate(it)
		if c.Title == "" && c.OneLiner == "" {
			continue
		}
		if len(c.Beats) == 0 {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no valid outline in output")
	}
	return out, nil
}

func normalizeCandidate(c CandidateOutline) CandidateOutline {
	c.Title = strings.TrimSpace(c.Title)
	c.OneLiner = strings.TrimSpace(c.OneLiner)
	c.ConflictFocus = strings.TrimSpace(c.ConflictFocus)
	c.ConflictCategory = strings.TrimSpace(c.ConflictCategory)
	c.StakesDelta = strings.TrimSpace(c.StakesDelta)
	c.EntryState = strings.TrimSpace(c.EntryState)
	c.ExitState = strings.TrimSpace(c.ExitState)
	c.Beats = storyutil.UniqueStrings(c.Beats)
	c.ThemeTags = storyutil.UniqueStrings(c.ThemeTags)
	c.RequiredEntities = storyutil.UniqueStrings(c.RequiredEntities)
	c.FocalEntities = storyutil.UniqueStrings(c.FocalEntities)
	return c
}
