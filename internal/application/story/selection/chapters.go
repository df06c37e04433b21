package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/embedding"

	"z-novel-writer/internal/application/story/storyutil"
	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
)

// ChapterOptions 单次章节选择的参数
type ChapterOptions struct {
	MaxCount         int
	TokenBudget      int
	PrioritizeRecent bool
	IncludeKeyBeats  bool
	UseEmbedding     bool
}

// SelectedChapter 被选中的章节及其打分明细
type SelectedChapter struct {
	Chapter    *entity.Chapter
	Relevance  float64
	Similarity float64
	Recency    float64
	Tokens     int
	Block      string
}

// ChapterResult 章节选择结果，Selected 按时间顺序排列
type ChapterResult struct {
	Selected []SelectedChapter
	Text     string
	Tokens   int
	Method   Method
}

// ChapterSelector 在 token 预算内挑选与当前写作目标最相关的前文章节
type ChapterSelector struct {
	embedder embedding.Embedder
	params   Params
}

// NewChapterSelector 创建章节选择器；embedder 为 nil 时只使用启发式打分
func NewChapterSelector(embedder embedding.Embedder, params Params) *ChapterSelector {
	return &ChapterSelector{embedder: embedder, params: params.normalized()}
}

var errNoChapterVectors = errors.New("no chapter has a comparable embedding")

type chapterCandidate struct {
	chapter    *entity.Chapter
	outline    *entity.OutlinePayload
	position   int
	similarity float64
	recency    float64
	relevance  float64
	block      string
	tokens     int
}

// Select 从 chapters 中选择上下文章节。
// outlines 以章节 ID 为键，可为空；targetTopic 通常是当前章节大纲的概要与节拍。
func (s *ChapterSelector) Select(
	ctx context.Context,
	chapters []*entity.Chapter,
	outlines map[string]*entity.OutlinePayload,
	targetTopic string,
	opts ChapterOptions,
) (*ChapterResult, error) {
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = defaultTokenBudget
	}
	ordered := make([]*entity.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch != nil {
			ordered = append(ordered, ch)
		}
	}
	if len(ordered) == 0 {
		metrics.SelectionTotal.WithLabelValues("chapter", string(MethodRecent)).Inc()
		return &ChapterResult{Method: MethodRecent}, nil
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].OrderIndex < ordered[j].OrderIndex })

	candidates := make([]*chapterCandidate, 0, len(ordered))
	for i, ch := range ordered {
		var ol *entity.OutlinePayload
		if outlines != nil {
			ol = outlines[ch.ID]
		}
		block := s.renderChapter(ch, ol)
		candidates = append(candidates, &chapterCandidate{
			chapter:  ch,
			outline:  ol,
			position: i,
			recency:  recencyBoost(i, len(ordered)),
			block:    block,
			tokens:   blockTokens(block, s.params.TokenRatio),
		})
	}

	method := MethodHeuristic
	var ranked []*chapterCandidate
	if opts.UseEmbedding && s.embedder != nil && strings.TrimSpace(targetTopic) != "" {
		scored, err := s.scoreByEmbedding(ctx, candidates, targetTopic, opts)
		if err != nil {
			logger.Warn(ctx, "chapter selection falls back to heuristic", "error", err)
		} else {
			method = MethodEmbedding
			ranked = scored
		}
	}
	if method == MethodHeuristic {
		ranked = scoreHeuristic(candidates)
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].relevance > ranked[j].relevance })
	tokens := make([]int, len(ranked))
	for i, c := range ranked {
		tokens[i] = c.tokens
	}
	accepted, used := packGreedy(tokens, opts.TokenBudget, opts.MaxCount)

	picked := make([]*chapterCandidate, 0, len(accepted))
	for _, idx := range accepted {
		picked = append(picked, ranked[idx])
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].position < picked[j].position })

	res := &ChapterResult{Method: method, Tokens: used, Selected: make([]SelectedChapter, 0, len(picked))}
	blocks := make([]string, 0, len(picked))
	for _, c := range picked {
		res.Selected = append(res.Selected, SelectedChapter{
			Chapter:    c.chapter,
			Relevance:  c.relevance,
			Similarity: c.similarity,
			Recency:    c.recency,
			Tokens:     c.tokens,
			Block:      c.block,
		})
		blocks = append(blocks, c.block)
	}
	res.Text = strings.Join(blocks, blockSeparator)

	metrics.SelectionTotal.WithLabelValues("chapter", string(method)).Inc()
	logger.Debug(ctx, "chapters selected",
		"method", method,
		"candidates", len(candidates),
		"selected", len(res.Selected),
		"tokens", used,
		"budget", opts.TokenBudget,
	)
	return res, nil
}

func (s *ChapterSelector) scoreByEmbedding(
	ctx context.Context,
	candidates []*chapterCandidate,
	targetTopic string,
	opts ChapterOptions,
) ([]*chapterCandidate, error) {
	vecs, err := s.embedder.EmbedStrings(ctx, []string{targetTopic})
	if err != nil {
		return nil, fmt.Errorf("embed target topic: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed target topic: empty vector")
	}
	topic := toFloat32(vecs[0])

	// 缺少预计算向量的章节批量即时 embedding；过短的派生文本不参与
	pending := make([]*chapterCandidate, 0)
	texts := make([]string, 0)
	vectors := make(map[*chapterCandidate][]float32, len(candidates))
	for _, c := range candidates {
		if c.chapter.HasEmbedding() {
			vectors[c] = c.chapter.Embedding
			continue
		}
		text := derivedText(c.chapter, c.outline)
		if utf8.RuneCountInString(text) < s.params.MinEmbedRunes {
			continue
		}
		pending = append(pending, c)
		texts = append(texts, text)
	}
	if len(texts) > 0 {
		out, err := s.embedder.EmbedStrings(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chapters: %w", err)
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embed chapters: got %d vectors for %d texts", len(out), len(texts))
		}
		for i, c := range pending {
			vectors[c] = toFloat32(out[i])
		}
	}

	ranked := make([]*chapterCandidate, 0, len(vectors))
	compared := 0
	for _, c := range candidates {
		vec, ok := vectors[c]
		if !ok {
			continue
		}
		sim, err := storyutil.Cosine(topic, vec)
		if err != nil {
			logger.Warn(ctx, "skipping chapter with incompatible embedding",
				"chapter_id", c.chapter.ID, "error", err)
			continue
		}
		compared++
		c.similarity = sim
		relevance := sim
		if opts.PrioritizeRecent {
			relevance = 0.7*sim + 0.3*c.recency
		}
		if opts.IncludeKeyBeats && c.outline.HasBeats() {
			relevance *= 1.1
		}
		c.relevance = relevance
		if relevance < s.params.MinRelevance {
			continue
		}
		ranked = append(ranked, c)
	}
	if compared == 0 {
		return nil, errNoChapterVectors
	}
	return ranked, nil
}

// scoreHeuristic 无向量时的打分：近因为主，节拍与结束状态各加一小部分
func scoreHeuristic(candidates []*chapterCandidate) []*chapterCandidate {
	ranked := make([]*chapterCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := 0.6 * c.recency
		if c.outline.HasBeats() {
			score += 0.2
		}
		if c.outline.HasExitState() {
			score += 0.2
		}
		if score > 1.0 {
			score = 1.0
		}
		c.relevance = score
		ranked = append(ranked, c)
	}
	return ranked
}

// renderChapter 渲染单章上下文块：标题行 + 摘要（无摘要时取正文或大纲的中段摘录）
func (s *ChapterSelector) renderChapter(ch *entity.Chapter, ol *entity.OutlinePayload) string {
	var b strings.Builder
	b.WriteString(chapterHeader(ch))
	b.WriteString("\n")
	body := strings.TrimSpace(ch.Summary)
	if body == "" {
		body = storyutil.ExcerptMiddle(derivedText(ch, ol), s.params.ExcerptRunes)
	}
	b.WriteString(body)
	return strings.TrimSpace(b.String())
}

// chapterHeader 形如 "第3章 雨夜"，OrderIndex 从 0 开始
func chapterHeader(ch *entity.Chapter) string {
	header := fmt.Sprintf("第%d章", ch.OrderIndex+1)
	if t := strings.TrimSpace(ch.Title); t != "" {
		header += " " + t
	}
	return header
}

// derivedText 章节的可比较文本：正文优先，否则由大纲概要与节拍拼成
func derivedText(ch *entity.Chapter, ol *entity.OutlinePayload) string {
	if content := strings.TrimSpace(ch.ContentText); content != "" {
		return content
	}
	if ol == nil {
		return ""
	}
	parts := make([]string, 0, 1+len(ol.Beats))
	if s := strings.TrimSpace(ol.OneLiner); s != "" {
		parts = append(parts, s)
	}
	for _, beat := range ol.Beats {
		if s := strings.TrimSpace(beat); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
