package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// SceneRepository 场景拆解仓储接口
type SceneRepository interface {
	// ListByChapter 获取章节场景（按 index 升序）
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.SceneFrame, error)

	// ReplaceForChapter 整体替换章节的场景拆解
	ReplaceForChapter(ctx context.Context, chapterID string, scenes []*entity.SceneFrame) error
}
