package storyutil

import (
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultTokenRatio 字符到 token 的估算比例（中文文本密度）
const DefaultTokenRatio = 0.4

// ExcerptMarker 摘录截断标记
const ExcerptMarker = "……"

// EstimateTokens 按固定比例估算 token 数
func EstimateTokens(text string, ratio float64) int {
	if ratio <= 0 {
		ratio = DefaultTokenRatio
	}
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * ratio))
}

// ExcerptMiddle 从文本中部截取 maxRunes 个字符，两端加截断标记。
// 开头往往是低信息量的过渡段落，因此取中段而非开头。
func ExcerptMiddle(text string, maxRunes int) string {
	s := strings.TrimSpace(text)
	if maxRunes <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	start := (len(r) - maxRunes) / 2
	return ExcerptMarker + strings.TrimSpace(string(r[start:start+maxRunes])) + ExcerptMarker
}

// CompactOneLine 将多行文本压缩为单行
func CompactOneLine(s string) string {
	out := strings.ReplaceAll(s, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = strings.ReplaceAll(out, "\n", " ")
	out = strings.TrimSpace(out)
	for strings.Contains(out, "  ") {
		out = strings.ReplaceAll(out, "  ", " ")
	}
	return out
}

// CountOccurrences 统计 needle 在 haystack 中的非重叠出现次数
func CountOccurrences(haystack, needle string) int {
	if needle == "" {
		return 0
	}
	return strings.Count(haystack, needle)
}

// UniqueStrings 去空白、去重并保持顺序
func UniqueStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		s := strings.TrimSpace(it)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
