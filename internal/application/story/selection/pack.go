// Package selection 在预算约束下挑选续写所需的前文章节与世界设定。
package selection

import (
	"z-novel-writer/internal/application/story/storyutil"
)

// Method 本次选择实际使用的打分方式
type Method string

const (
	MethodEmbedding Method = "embedding"
	MethodHeuristic Method = "heuristic"
	MethodRecent    Method = "recent"
	MethodAll       Method = "all"
	MethodKeyword   Method = "keyword"
)

const (
	defaultTokenBudget = 2000
	blockSeparator     = "\n\n"
)

// Params 选择器的固定参数
type Params struct {
	// MinRelevance 语义相关度下限，低于该值的候选直接丢弃
	MinRelevance float64
	// TokenRatio 字符到 token 的估算比例
	TokenRatio float64
	// MinEmbedRunes 无预计算向量时，派生文本短于该长度的章节不做即时 embedding
	MinEmbedRunes int
	// ExcerptRunes 单个章节渲染时的最大摘录长度
	ExcerptRunes int
	// KeywordZeroScoreCap 关键词降级时，零分设定最多补位的条数
	KeywordZeroScoreCap int
}

// DefaultParams 返回默认参数
func DefaultParams() Params {
	return Params{
		MinRelevance:        0.6,
		TokenRatio:          storyutil.DefaultTokenRatio,
		MinEmbedRunes:       50,
		ExcerptRunes:        1200,
		KeywordZeroScoreCap: 3,
	}
}

func (p Params) normalized() Params {
	d := DefaultParams()
	if p.MinRelevance <= 0 {
		p.MinRelevance = d.MinRelevance
	}
	if p.TokenRatio <= 0 {
		p.TokenRatio = d.TokenRatio
	}
	if p.MinEmbedRunes <= 0 {
		p.MinEmbedRunes = d.MinEmbedRunes
	}
	if p.ExcerptRunes <= 0 {
		p.ExcerptRunes = d.ExcerptRunes
	}
	if p.KeywordZeroScoreCap <= 0 {
		p.KeywordZeroScoreCap = d.KeywordZeroScoreCap
	}
	return p
}

// blockTokens 估算一个渲染块（含分隔符）的 token 数。
// 每块各自向上取整再求和，总和不小于拼接后整体的估算值，因此逐块累计即可保证整体不超预算。
func blockTokens(block string, ratio float64) int {
	return storyutil.EstimateTokens(block+blockSeparator, ratio)
}

// packGreedy 按给定顺序贪心装箱：累计不超预算且数量未达上限则接受，否则跳过（不回填）。
// maxCount <= 0 表示不限数量。返回被接受的下标与累计 token。
func packGreedy(tokens []int, budget, maxCount int) ([]int, int) {
	accepted := make([]int, 0, len(tokens))
	used := 0
	for i, t := range tokens {
		if maxCount > 0 && len(accepted) >= maxCount {
			break
		}
		if used+t > budget {
			continue
		}
		accepted = append(accepted, i)
		used += t
	}
	return accepted, used
}

// recencyBoost 越靠后的章节得分越高：最旧 0.3，最新 1.0；n<=1 时为 1.0
func recencyBoost(i, n int) float64 {
	if n <= 1 {
		return 1.0
	}
	return 0.3 + 0.7*(float64(i)/float64(n-1))
}
