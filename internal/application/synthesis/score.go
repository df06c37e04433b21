package synthesis

import (
	"strings"
	"unicode/utf8"

	"z-novel-writer/internal/application/story/storyutil"
)

// 三项权重之和为 1
const (
	weightTheme       = 0.4
	weightProgression = 0.35
	weightWritability = 0.25

	// nearDuplicateThreshold 字符集 Jaccard 不低于该值视为近似重复
	nearDuplicateThreshold = 0.7
)

var genericBeatPhrases = []string{
	"待定", "未定", "剧情发展", "推进剧情", "情节推进", "故事继续", "略", "tbd", "todo", "placeholder", "...",
}

var conflictTerms = []string{
	"冲突", "对抗", "对峙", "危机", "背叛", "抉择", "争夺", "阻止", "阻挠", "威胁", "追杀", "陷阱", "揭露",
	"暴露", "失去", "牺牲", "反击", "敌", "逼", "困",
	"conflict", "fight", "betray", "threat", "chase", "confront",
}

// Score 为一组候选逐条打分；位置 i 的推进参照为同组位置 i-1，位置 0 使用 previous
func Score(set []CandidateOutline, themeTags []string, previous *CandidateOutline) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(set))
	for i := range set {
		pred := previous
		if i > 0 {
			pred = &set[i-1]
		}
		c := set[i]
		sc := ScoredCandidate{
			Candidate:   c,
			Theme:       ThemeScore(&c, themeTags),
			Progression: ProgressionScore(&c, pred),
			Writability: WritabilityScore(&c),
		}
		sc.Total = TotalScore(sc.Theme, sc.Progression, sc.Writability)
		out = append(out, sc)
	}
	return out
}

// TotalScore 加权总分
func TotalScore(theme, progression, writability float64) float64 {
	return weightTheme*theme + weightProgression*progression + weightWritability*writability
}

// MeanTotal 一组候选的平均总分，空集为 0
func MeanTotal(cands []ScoredCandidate) float64 {
	if len(cands) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range cands {
		sum += c.Total
	}
	return sum / float64(len(cands))
}

// ThemeScore 主题分（0-100）
func ThemeScore(c *CandidateOutline, themeTags []string) float64 {
	score := 0.0
	own := make(map[string]struct{}, len(c.ThemeTags))
	for _, t := range c.ThemeTags {
		own[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	text := strings.ToLower(c.Text())
	for _, tag := range themeTags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, ok := own[t]; ok {
			score += 15
		} else if strings.Contains(text, t) {
			score += 10
		}
	}

	score += beatQuality(c.Beats)

	switch n := utf8.RuneCountInString(strings.TrimSpace(c.ConflictFocus)); {
	case n >= 10:
		score += 30
	case n > 0:
		score += 15
	}
	return clamp100(score)
}

// beatQuality 每个节拍三项检查（长度适中、非空话、含冲突词）的平均通过率 × 30
func beatQuality(beats []string) float64 {
	if len(beats) == 0 {
		return 0
	}
	passed := 0
	for _, b := range beats {
		s := strings.TrimSpace(b)
		if n := utf8.RuneCountInString(s); n >= 8 && n <= 80 {
			passed++
		}
		if !isGenericBeat(s) {
			passed++
		}
		if containsAny(strings.ToLower(s), conflictTerms) {
			passed++
		}
	}
	return 30 * float64(passed) / float64(3*len(beats))
}

func isGenericBeat(s string) bool {
	l := strings.ToLower(strings.TrimSpace(s))
	if l == "" {
		return true
	}
	for _, p := range genericBeatPhrases {
		if l == p || (utf8.RuneCountInString(l) <= 8 && strings.Contains(l, p)) {
			return true
		}
	}
	return false
}

// ProgressionScore 相对前一条大纲的推进分（0-100）
func ProgressionScore(c *CandidateOutline, predecessor *CandidateOutline) float64 {
	score := 40.0
	if predecessor != nil && len(c.Beats) > 0 {
		fresh := 0
		for _, b := range c.Beats {
			if !isNearDuplicate(b, predecessor.Beats) {
				fresh++
			}
		}
		score += 25 * float64(fresh) / float64(len(c.Beats))

		cur := strings.ToLower(strings.TrimSpace(c.ConflictCategory))
		prev := strings.ToLower(strings.TrimSpace(predecessor.ConflictCategory))
		if cur != "" && cur != prev {
			score += 10
		}
	}
	if n := len(c.Beats); n >= 3 && n <= 5 {
		score += 25
	}
	return clamp100(score)
}

// WritabilityScore 可写性分（0-100）：一句话概要、节拍数量、标题长度分段给分
func WritabilityScore(c *CandidateOutline) float64 {
	score := 0.0
	switch n := utf8.RuneCountInString(c.OneLiner); {
	case n >= 10 && n <= 60:
		score += 35
	case n > 0:
		score += 15
	}
	switch n := len(c.Beats); {
	case n >= 3 && n <= 6:
		score += 35
	case n >= 1:
		score += 15
	}
	switch n := utf8.RuneCountInString(c.Title); {
	case n >= 2 && n <= 20:
		score += 30
	case n > 0:
		score += 10
	}
	return clamp100(score)
}

func isNearDuplicate(s string, existing []string) bool {
	for _, e := range existing {
		if storyutil.CharJaccard(s, e) >= nearDuplicateThreshold {
			return true
		}
	}
	return false
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
