package retrieval

// RetrieveInput 双阶段检索输入。
type RetrieveInput struct {
	ProjectID        string
	CurrentChapterID string
	Query            string
	TopK             int
	// TimeWindow 结构窗口半径（按 orderIndex 计）
	TimeWindow int
}

// Mode 实际使用的排序方式
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeRecent   Mode = "recent"
)

// RetrievedContext 单条召回结果，生命周期仅限一次检索调用。
type RetrievedContext struct {
	ChapterID  string `json:"chapter_id"`
	Label      string `json:"label"`
	OrderIndex int    `json:"order_index"`
	Excerpt    string `json:"excerpt"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Recency    float64 `json:"recency"`
	RoleWeight float64 `json:"role_weight"`
}

// DebugInfo 检索过程的统计信息
type DebugInfo struct {
	WindowStart     int   `json:"window_start"`
	WindowEnd       int   `json:"window_end"`
	PoolSize        int   `json:"pool_size"`
	WithEmbedding   int   `json:"with_embedding"`
	HydratedVectors int   `json:"hydrated_vectors"`
	EmbedTimeMs     int64 `json:"embed_time_ms"`
	TotalTimeMs     int64 `json:"total_time_ms"`
}

// RetrieveOutput 检索结果与可直接注入 Prompt 的片段
type RetrieveOutput struct {
	Contexts []RetrievedContext
	Prompt   string
	Mode     Mode

	// FallbackReason 非空表示语义阶段被跳过的原因
	FallbackReason string
	Debug          *DebugInfo
}
