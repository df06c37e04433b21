// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// GetByID 根据 ID 获取章节，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// Update 更新章节
	Update(ctx context.Context, chapter *entity.Chapter) error

	// ListByProject 获取项目章节（按 order_index 升序）
	ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error)

	// UpdateEmbedding 写入预计算向量；仅当 version 不低于已记录的 embedding_version 时生效
	UpdateEmbedding(ctx context.Context, id string, vector []float32, version int) error
}
