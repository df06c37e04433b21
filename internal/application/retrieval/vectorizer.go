package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/application/story/storyutil"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/tracer"
)

// JobTypeChapterVectorize 章节向量化任务类型
const JobTypeChapterVectorize = "chapter_vectorize"

const defaultVectorizeRunes = 6000

// VectorizeJob 章节向量化任务负载
type VectorizeJob struct {
	ProjectID string `json:"project_id"`
	ChapterID string `json:"chapter_id"`
	Version   int    `json:"version"`
}

// Vectorizer 异步刷新章节的预计算向量。
// 任务按至少一次投递，同一章节重复执行结果一致。
type Vectorizer struct {
	embedder embedding.Embedder
	chapters repository.ChapterRepository
	vectors  VectorStore
	maxRunes int
}

// NewVectorizer 创建向量化器；vectors 为 nil 时只回写章节行
func NewVectorizer(embedder embedding.Embedder, chapters repository.ChapterRepository, vectors VectorStore, maxRunes int) *Vectorizer {
	if maxRunes <= 0 {
		maxRunes = defaultVectorizeRunes
	}
	return &Vectorizer{embedder: embedder, chapters: chapters, vectors: vectors, maxRunes: maxRunes}
}

// Enabled 是否具备向量化能力
func (v *Vectorizer) Enabled() bool {
	return v != nil && v.embedder != nil && v.chapters != nil
}

// VectorizeChapter 处理一个向量化任务
func (v *Vectorizer) VectorizeChapter(ctx context.Context, job VectorizeJob) error {
	if !v.Enabled() {
		return ErrVectorDisabled
	}
	if strings.TrimSpace(job.ChapterID) == "" {
		return fmt.Errorf("chapter_id is required")
	}

	ctx, span := tracer.Start(ctx, "retrieval.VectorizeChapter",
		trace.WithAttributes(
			attribute.String("chapter_id", job.ChapterID),
			attribute.Int("version", job.Version),
		))
	defer span.End()

	chapter, err := v.chapters.GetByID(ctx, job.ChapterID)
	if err != nil {
		tracer.Fail(span, err)
		return fmt.Errorf("load chapter: %w", err)
	}
	if chapter == nil {
		logger.Info(ctx, "chapter gone, vectorize job dropped", "chapter_id", job.ChapterID)
		return nil
	}
	// 落后于当前内容的任务直接丢弃，后续版本会另行入队
	if job.Version > 0 && job.Version < chapter.Version {
		logger.Debug(ctx, "stale vectorize job skipped",
			"chapter_id", chapter.ID, "job_version", job.Version, "chapter_version", chapter.Version)
		return nil
	}
	if !chapter.EmbeddingStale() {
		return nil
	}

	text := strings.TrimSpace(chapter.Title + "\n" + storyutil.TruncateByRunes(strings.TrimSpace(chapter.ContentText), v.maxRunes))
	if strings.TrimSpace(chapter.ContentText) == "" {
		logger.Debug(ctx, "empty chapter skipped for vectorize", "chapter_id", chapter.ID)
		return nil
	}

	out, err := v.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		tracer.Fail(span, err)
		return fmt.Errorf("embed chapter: %w", err)
	}
	if len(out) != 1 || len(out[0]) == 0 {
		return fmt.Errorf("embed chapter: empty vector")
	}
	vec := make([]float32, len(out[0]))
	for i, x := range out[0] {
		vec[i] = float32(x)
	}

	if v.vectors != nil {
		if err := v.vectors.UpsertChapterVectors(ctx, chapter.ProjectID, []*ChapterVector{{
			ChapterID:  chapter.ID,
			ProjectID:  chapter.ProjectID,
			OrderIndex: int64(chapter.OrderIndex),
			Version:    int64(chapter.Version),
			Vector:     vec,
		}}); err != nil {
			tracer.Fail(span, err)
			return fmt.Errorf("upsert chapter vector: %w", err)
		}
	}

	if err := v.chapters.UpdateEmbedding(ctx, chapter.ID, vec, chapter.Version); err != nil {
		tracer.Fail(span, err)
		return fmt.Errorf("update chapter embedding: %w", err)
	}

	logger.Info(ctx, "chapter vectorized",
		"chapter_id", chapter.ID,
		"version", chapter.Version,
		"dimension", len(vec),
	)
	return nil
}
