package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// OutlineRepository 大纲仓储接口
type OutlineRepository interface {
	// GetByParent 获取结构节点对应的大纲，不存在时返回 (nil, nil)
	GetByParent(ctx context.Context, kind entity.OutlineKind, parentID string) (*entity.Outline, error)

	// ListByProject 获取项目某层级的全部大纲（按 order_index 升序）
	ListByProject(ctx context.Context, projectID string, kind entity.OutlineKind) ([]*entity.Outline, error)

	// ReplaceAll 整体替换项目某层级的大纲
	ReplaceAll(ctx context.Context, projectID string, kind entity.OutlineKind, outlines []*entity.Outline) error
}
