package storyutil

import (
	"errors"
	"fmt"
	"math"
	"unicode"
)

// ErrVectorMismatch 向量维度不一致（来自不同的 embedding 提供方）
var ErrVectorMismatch = errors.New("embedding dimension mismatch")

// Cosine 计算余弦相似度。
// 维度不一致或任一向量为空时返回错误；零范数向量相似度为 0。
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("empty vector")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrVectorMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// CharJaccard 粗粒度文本相似度：去除空白与标点后，按唯一字符集合计算 Jaccard 指数。
// 只用于节拍去重这类近似判断，不是编辑距离。
func CharJaccard(a, b string) float64 {
	sa := charSet(a)
	sb := charSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for r := range sa {
		if _, ok := sb[r]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func charSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		set[unicode.ToLower(r)] = struct{}{}
	}
	return set
}
