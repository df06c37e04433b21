package synthesis

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxMergedBeats = 5
	maxMergedTags  = 5
)

// Merge 以平均总分最高的一组为基底，逐位置吸收后续 1-2 组中不重复的节拍与主题标签。
// 返回基底组下标（sets 中的原始位置）与融合后的候选，按位置排列。
func Merge(sets []HypothesisSet, maxAlternates int) (int, []CandidateOutline) {
	if len(sets) == 0 {
		return -1, nil
	}
	if maxAlternates < 1 {
		maxAlternates = 1
	}
	if maxAlternates > 2 {
		maxAlternates = 2
	}

	order := make([]int, len(sets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sets[order[a]].Mean > sets[order[b]].Mean })

	base := sets[order[0]]
	alternates := make([]HypothesisSet, 0, maxAlternates)
	for _, idx := range order[1:] {
		if len(alternates) >= maxAlternates {
			break
		}
		alternates = append(alternates, sets[idx])
	}

	merged := make([]CandidateOutline, 0, len(base.Candidates))
	for pos, sc := range base.Candidates {
		m := sc.Candidate.clone()
		m.Beats = capStrings(m.Beats, maxMergedBeats)
		m.ThemeTags = capStrings(m.ThemeTags, maxMergedTags)
		for _, alt := range alternates {
			if pos >= len(alt.Candidates) {
				continue
			}
			mergeInto(&m, &alt.Candidates[pos].Candidate)
		}
		merged = append(merged, m)
	}
	return order[0], merged
}

func mergeInto(dst *CandidateOutline, src *CandidateOutline) {
	for _, b := range src.Beats {
		if len(dst.Beats) >= maxMergedBeats {
			break
		}
		if strings.TrimSpace(b) == "" || isNearDuplicate(b, dst.Beats) {
			continue
		}
		dst.Beats = append(dst.Beats, b)
	}

	seen := make(map[string]struct{}, len(dst.ThemeTags))
	for _, t := range dst.ThemeTags {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range src.ThemeTags {
		if len(dst.ThemeTags) >= maxMergedTags {
			break
		}
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst.ThemeTags = append(dst.ThemeTags, strings.TrimSpace(t))
	}

	if utf8.RuneCountInString(src.ConflictFocus) > utf8.RuneCountInString(dst.ConflictFocus) {
		dst.ConflictFocus = src.ConflictFocus
	}
}

func capStrings(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
