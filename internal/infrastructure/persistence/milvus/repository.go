package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/application/retrieval"
	"z-novel-writer/pkg/metrics"
)

// Repository 章节向量仓储，实现 retrieval.VectorStore
type Repository struct {
	client *Client
	dim    int
}

var _ retrieval.VectorStore = (*Repository)(nil)

// NewRepository 创建章节向量仓储；client 为 nil 时所有操作返回 ErrVectorDisabled
func NewRepository(client *Client, dim int) *Repository {
	if dim <= 0 {
		dim = DefaultVectorDimension
	}
	return &Repository{client: client, dim: dim}
}

func (r *Repository) enabled() bool {
	return r != nil && r.client != nil && r.client.milvus != nil
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MilvusCallTotal.WithLabelValues(op, status).Inc()
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)

	err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	observe("create_collection", err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	idx, err := entity.NewIndexHNSW(
		entity.COSINE,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = r.client.milvus.CreateIndex(ctx, r.client.CollectionName(collection), fieldVector, idx, false)
	observe("create_index", err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// EnsureChapterCollection 确保 chapter_vectors 集合与索引可用（不存在则创建）。
// 不做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureChapterCollection(ctx context.Context) error {
	if !r.enabled() {
		return retrieval.ErrVectorDisabled
	}

	exists, err := r.client.HasCollection(ctx, CollectionChapterVectors)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, ChapterVectorsSchema(r.dim)); err != nil {
			return err
		}
		// 索引失败允许后续由运维介入
		_ = r.CreateIndex(ctx, CollectionChapterVectors)
	}
	return r.client.LoadCollection(ctx, CollectionChapterVectors)
}

// UpsertChapterVectors 按 chapter_id 覆盖写入
func (r *Repository) UpsertChapterVectors(ctx context.Context, projectID string, vectors []*retrieval.ChapterVector) error {
	if !r.enabled() {
		return retrieval.ErrVectorDisabled
	}
	ctx, span := tracer.Start(ctx, "milvus.UpsertChapterVectors",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("count", len(vectors)),
		))
	defer span.End()

	ids := make([]string, 0, len(vectors))
	vecs := make([][]float32, 0, len(vectors))
	projects := make([]string, 0, len(vectors))
	orders := make([]int64, 0, len(vectors))
	versions := make([]int64, 0, len(vectors))
	for _, v := range vectors {
		if v == nil || v.ChapterID == "" || len(v.Vector) == 0 {
			continue
		}
		if len(v.Vector) != r.dim {
			return fmt.Errorf("vector dimension mismatch for chapter %s: got %d want %d", v.ChapterID, len(v.Vector), r.dim)
		}
		ids = append(ids, v.ChapterID)
		vecs = append(vecs, v.Vector)
		projects = append(projects, projectID)
		orders = append(orders, v.OrderIndex)
		versions = append(versions, v.Version)
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := r.client.milvus.Upsert(ctx, r.client.CollectionName(CollectionChapterVectors), "",
		entity.NewColumnVarChar(fieldChapterID, ids),
		entity.NewColumnFloatVector(fieldVector, r.dim, vecs),
		entity.NewColumnVarChar(fieldProjectID, projects),
		entity.NewColumnInt64(fieldOrderIndex, orders),
		entity.NewColumnInt64(fieldVersion, versions),
	)
	observe("upsert", err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert chapter vectors: %w", err)
	}
	return nil
}

// FetchChapterVectors 按 ID 取回向量；未索引的章节不出现在结果中
func (r *Repository) FetchChapterVectors(ctx context.Context, projectID string, chapterIDs []string) (map[string][]float32, error) {
	if !r.enabled() {
		return nil, retrieval.ErrVectorDisabled
	}
	out := make(map[string][]float32, len(chapterIDs))
	if len(chapterIDs) == 0 {
		return out, nil
	}
	ctx, span := tracer.Start(ctx, "milvus.FetchChapterVectors",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("count", len(chapterIDs)),
		))
	defer span.End()

	rs, err := r.client.milvus.Query(ctx,
		r.client.CollectionName(CollectionChapterVectors),
		nil,
		fetchExpr(projectID, chapterIDs),
		[]string{fieldChapterID, fieldVector},
	)
	observe("query", err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chapter vectors: %w", err)
	}

	idCol, ok := rs.GetColumn(fieldChapterID).(*entity.ColumnVarChar)
	if !ok {
		return out, nil
	}
	vecCol, ok := rs.GetColumn(fieldVector).(*entity.ColumnFloatVector)
	if !ok {
		return out, nil
	}
	ids, vecs := idCol.Data(), vecCol.Data()
	for i := range ids {
		if i < len(vecs) {
			out[ids[i]] = vecs[i]
		}
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

func fetchExpr(projectID string, chapterIDs []string) string {
	quoted := make([]string, 0, len(chapterIDs))
	for _, id := range chapterIDs {
		quoted = append(quoted, strconv.Quote(id))
	}
	return fmt.Sprintf(`%s == %s && %s in [%s]`,
		fieldProjectID, strconv.Quote(projectID), fieldChapterID, strings.Join(quoted, ", "))
}
