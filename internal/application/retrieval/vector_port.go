package retrieval

import "context"

// VectorStore 定义应用层对“章节向量存储”的最小依赖（port）。
// 由基础设施层提供具体实现（例如 Milvus）。
type VectorStore interface {
	EnsureChapterCollection(ctx context.Context) error
	UpsertChapterVectors(ctx context.Context, projectID string, vectors []*ChapterVector) error
	// FetchChapterVectors 按章节 ID 取回已索引的向量；未索引的 ID 不出现在结果中
	FetchChapterVectors(ctx context.Context, projectID string, chapterIDs []string) (map[string][]float32, error)
}

// ChapterVector 单章向量记录，以 ChapterID 为主键，重复写入即覆盖
type ChapterVector struct {
	ChapterID  string
	ProjectID  string
	OrderIndex int64
	Version    int64
	Vector     []float32
}
