// Package retrieval 实现“结构窗口 + 语义排序”的双阶段章节检索与章节向量化。
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/application/story/storyutil"
	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
	"z-novel-writer/pkg/tracer"
)

const (
	defaultTopK         = 5
	defaultTimeWindow   = 6
	defaultExcerptRunes = 600
	maxTopK             = 50

	weightSimilarity = 0.5
	weightRecency    = 0.3
	weightRole       = 0.2

	roleWeightHigh      = 1.2
	roleWeightBase      = 1.0
	roleWeightThreshold = 0.8

	fallbackScore = 0.5
)

// Options 检索默认参数
type Options struct {
	TopK         int
	TimeWindow   int
	ExcerptRunes int
}

// Engine 双阶段检索引擎
type Engine struct {
	embedder embedding.Embedder
	chapters repository.ChapterRepository
	vectors  VectorStore
	opts     Options
}

// NewEngine 创建检索引擎；vectors 可为 nil，此时只使用章节行上的预计算向量
func NewEngine(embedder embedding.Embedder, chapters repository.ChapterRepository, vectors VectorStore, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.TimeWindow <= 0 {
		opts.TimeWindow = defaultTimeWindow
	}
	if opts.ExcerptRunes <= 0 {
		opts.ExcerptRunes = defaultExcerptRunes
	}
	return &Engine{embedder: embedder, chapters: chapters, vectors: vectors, opts: opts}
}

// Retrieve 检索与 query 相关的邻近章节
func (e *Engine) Retrieve(ctx context.Context, in RetrieveInput) (*RetrieveOutput, error) {
	return e.retrieve(ctx, in, false)
}

// Search 与 Retrieve 相同，额外返回调试信息
func (e *Engine) Search(ctx context.Context, in RetrieveInput) (*RetrieveOutput, error) {
	return e.retrieve(ctx, in, true)
}

func (e *Engine) retrieve(ctx context.Context, in RetrieveInput, debug bool) (*RetrieveOutput, error) {
	in = e.normalize(in)
	if in.CurrentChapterID == "" {
		return nil, fmt.Errorf("current_chapter_id is required")
	}

	ctx, span := tracer.Start(ctx, "retrieval.Retrieve",
		trace.WithAttributes(
			attribute.String("chapter_id", in.CurrentChapterID),
			attribute.Int("top_k", in.TopK),
			attribute.Int("time_window", in.TimeWindow),
		))
	defer span.End()
	start := time.Now()

	current, err := e.chapters.GetByID(ctx, in.CurrentChapterID)
	if err != nil {
		tracer.Fail(span, err)
		return nil, fmt.Errorf("load current chapter: %w", err)
	}
	if current == nil {
		return nil, ErrChapterNotFound
	}
	if in.ProjectID == "" {
		in.ProjectID = current.ProjectID
	}

	all, err := e.chapters.ListByProject(ctx, in.ProjectID)
	if err != nil {
		tracer.Fail(span, err)
		return nil, fmt.Errorf("list chapters: %w", err)
	}

	// Stage A
	pool := StructuralPool(all, current, in.TimeWindow)
	metrics.RetrievalCandidates.Observe(float64(len(pool)))

	out := &RetrieveOutput{}
	var dbg *DebugInfo
	if debug {
		dbg = &DebugInfo{
			WindowStart: current.OrderIndex - in.TimeWindow,
			WindowEnd:   current.OrderIndex + in.TimeWindow,
			PoolSize:    len(pool),
		}
	}

	// Stage B
	embedStart := time.Now()
	queryVec, embedErr := e.embedQuery(ctx, in.Query)
	if dbg != nil {
		dbg.EmbedTimeMs = time.Since(embedStart).Milliseconds()
	}
	if embedErr != nil {
		logger.Warn(ctx, "retrieval falls back to recent chapters", "error", embedErr)
		out.Mode = ModeRecent
		out.FallbackReason = embedErr.Error()
		out.Contexts = RecentContexts(pool, in.TopK, e.opts.ExcerptRunes)
	} else {
		hydrated := e.hydrate(ctx, in.ProjectID, pool)
		if dbg != nil {
			dbg.HydratedVectors = hydrated
			for _, ch := range pool {
				if ch.HasEmbedding() {
					dbg.WithEmbedding++
				}
			}
		}
		out.Mode = ModeSemantic
		out.Contexts = RankCandidates(ctx, pool, queryVec, current.OrderIndex, in.TopK, e.opts.ExcerptRunes)
	}

	out.Prompt = BuildPromptContext(out.Contexts)
	if dbg != nil {
		dbg.TotalTimeMs = time.Since(start).Milliseconds()
		out.Debug = dbg
	}

	metrics.RetrievalTotal.WithLabelValues(string(out.Mode)).Inc()
	span.SetAttributes(
		attribute.String("mode", string(out.Mode)),
		attribute.Int("pool_size", len(pool)),
		attribute.Int("result_count", len(out.Contexts)),
	)
	return out, nil
}

func (e *Engine) normalize(in RetrieveInput) RetrieveInput {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.CurrentChapterID = strings.TrimSpace(in.CurrentChapterID)
	in.Query = strings.TrimSpace(in.Query)
	if in.TopK <= 0 {
		in.TopK = e.opts.TopK
	}
	if in.TopK > maxTopK {
		in.TopK = maxTopK
	}
	if in.TimeWindow <= 0 {
		in.TimeWindow = e.opts.TimeWindow
	}
	return in
}

// hydrate 为缺少预计算向量的候选从向量库补齐；失败只记录日志
func (e *Engine) hydrate(ctx context.Context, projectID string, pool []*entity.Chapter) int {
	if e.vectors == nil {
		return 0
	}
	missing := make([]string, 0)
	for _, ch := range pool {
		if !ch.HasEmbedding() {
			missing = append(missing, ch.ID)
		}
	}
	if len(missing) == 0 {
		return 0
	}
	found, err := e.vectors.FetchChapterVectors(ctx, projectID, missing)
	if err != nil {
		logger.Warn(ctx, "failed to hydrate chapter vectors", "count", len(missing), "error", err)
		return 0
	}
	n := 0
	for _, ch := range pool {
		if v, ok := found[ch.ID]; ok && len(v) > 0 && !ch.HasEmbedding() {
			ch.Embedding = v
			n++
		}
	}
	return n
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if e == nil || e.embedder == nil {
		return nil, ErrVectorDisabled
	}
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	v64, err := e.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 || len(v64[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	out := make([]float32, 0, len(v64[0]))
	for _, x := range v64[0] {
		out = append(out, float32(x))
	}
	return out, nil
}

// StructuralPool 返回 orderIndex 落在 [c-w, c+w] 内的章节，始终排除当前章节本身。
// 重新生成某章时，其旧正文不能作为“前文”被召回。
func StructuralPool(chapters []*entity.Chapter, current *entity.Chapter, window int) []*entity.Chapter {
	if current == nil {
		return nil
	}
	lo, hi := current.OrderIndex-window, current.OrderIndex+window
	pool := make([]*entity.Chapter, 0)
	for _, ch := range chapters {
		if ch == nil || ch.ID == current.ID {
			continue
		}
		if ch.OrderIndex < lo || ch.OrderIndex > hi {
			continue
		}
		pool = append(pool, ch)
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].OrderIndex < pool[j].OrderIndex })
	return pool
}

// CombinedScore final = 0.5·similarity + 0.3·recency + 0.2·roleWeight
func CombinedScore(similarity, recency float64) (score, roleWeight float64) {
	roleWeight = roleWeightBase
	if similarity > roleWeightThreshold {
		roleWeight = roleWeightHigh
	}
	return weightSimilarity*similarity + weightRecency*recency + weightRole*roleWeight, roleWeight
}

// RankCandidates 对有向量的候选按综合分排序取 topK；无向量或维度不符的候选跳过
func RankCandidates(ctx context.Context, pool []*entity.Chapter, query []float32, currentPos, topK, excerptRunes int) []RetrievedContext {
	maxDist := 0
	for _, ch := range pool {
		if d := absInt(ch.OrderIndex - currentPos); d > maxDist {
			maxDist = d
		}
	}

	out := make([]RetrievedContext, 0, len(pool))
	for _, ch := range pool {
		if !ch.HasEmbedding() {
			continue
		}
		sim, err := storyutil.Cosine(query, ch.Embedding)
		if err != nil {
			logger.Warn(ctx, "skipping chapter with incompatible embedding", "chapter_id", ch.ID, "error", err)
			continue
		}
		recency := 1.0
		if maxDist > 0 {
			recency = 1 - float64(absInt(ch.OrderIndex-currentPos))/float64(maxDist)
		}
		score, role := CombinedScore(sim, recency)
		rc := newContext(ch, excerptRunes)
		rc.Score = score
		rc.Similarity = sim
		rc.Recency = recency
		rc.RoleWeight = role
		out = append(out, rc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// RecentContexts 语义阶段不可用时的降级：取 orderIndex 最大的 topK 个候选，固定分数
func RecentContexts(pool []*entity.Chapter, topK, excerptRunes int) []RetrievedContext {
	sorted := append([]*entity.Chapter(nil), pool...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderIndex > sorted[j].OrderIndex })
	if len(sorted) > topK {
		sorted = sorted[:topK]
	}
	out := make([]RetrievedContext, 0, len(sorted))
	for _, ch := range sorted {
		rc := newContext(ch, excerptRunes)
		rc.Score = fallbackScore
		out = append(out, rc)
	}
	return out
}

func newContext(ch *entity.Chapter, excerptRunes int) RetrievedContext {
	text := strings.TrimSpace(ch.ContentText)
	if text == "" {
		text = strings.TrimSpace(ch.Summary)
	}
	label := fmt.Sprintf("第%d章", ch.OrderIndex+1)
	if t := strings.TrimSpace(ch.Title); t != "" {
		label += " " + t
	}
	return RetrievedContext{
		ChapterID:  ch.ID,
		Label:      label,
		OrderIndex: ch.OrderIndex,
		Excerpt:    storyutil.ExcerptMiddle(text, excerptRunes),
	}
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
