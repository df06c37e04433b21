package storyutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = Cosine([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = Cosine([]float32{1, 2, 3}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrVectorMismatch)

	_, err = Cosine(nil, []float32{1})
	assert.Error(t, err)
}

func TestCharJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, CharJaccard("林远出城", "林远，出城。"), 1e-9)
	assert.InDelta(t, 0.0, CharJaccard("abc", "xyz"), 1e-9)
	assert.InDelta(t, 0.5, CharJaccard("ab", "abc d"), 0.26)
	assert.Zero(t, CharJaccard("", "  "))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("", 0.4))
	assert.Equal(t, 4, EstimateTokens(strings.Repeat("字", 10), 0.4))
	// 向上取整
	assert.Equal(t, 1, EstimateTokens("a", 0.4))
	// 非法比例回退默认值
	assert.Equal(t, 4, EstimateTokens(strings.Repeat("字", 10), 0))
}

func TestExcerptMiddle(t *testing.T) {
	assert.Equal(t, "short", ExcerptMiddle("  short ", 10))
	assert.Equal(t, "", ExcerptMiddle("anything", 0))

	got := ExcerptMiddle("0123456789", 4)
	assert.Equal(t, ExcerptMarker+"3456"+ExcerptMarker, got)
}

func TestCompactOneLine(t *testing.T) {
	assert.Equal(t, "a b c", CompactOneLine(" a\r\nb\n\n  c "))
}

func TestUniqueStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, UniqueStrings([]string{" a", "b", "", "a ", "b"}))
	assert.Empty(t, UniqueStrings(nil))
}

func TestCountOccurrences(t *testing.T) {
	assert.Equal(t, 2, CountOccurrences("林远与林远", "林远"))
	assert.Equal(t, 0, CountOccurrences("abc", ""))
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "prefix {\"a\":1} suffix", want: `{"a":1}`},
		{in: "```json\n[1,2]\n```", want: `[1,2]`},
		{in: "见[注]：{\"outlines\":[{\"title\":\"雨夜\"}]} 完毕}", want: `{"outlines":[{"title":"雨夜"}]}`},
		{in: "  not json  ", want: "not json"},
		{in: "{broken", want: "{broken"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractJSON(tt.in), tt.in)
	}
}

func TestTruncateByRunes(t *testing.T) {
	assert.Equal(t, "林远", TruncateByRunes("林远出城", 2))
	assert.Equal(t, "abc", TruncateByRunes("abc", 5))
	assert.Equal(t, "", TruncateByRunes("abc", 0))
}
