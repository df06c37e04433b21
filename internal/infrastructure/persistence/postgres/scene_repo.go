package postgres

import (
	"context"
	"fmt"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
)

// SceneRepository 场景拆解仓储实现
type SceneRepository struct {
	client *Client
}

var _ repository.SceneRepository = (*SceneRepository)(nil)

// NewSceneRepository 创建场景仓储
func NewSceneRepository(client *Client) *SceneRepository {
	return &SceneRepository{client: client}
}

// ListByChapter 获取章节场景
func (r *SceneRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.SceneFrame, error) {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var scenes []*entity.SceneFrame
	if err := db.Where("chapter_id = ?", chapterID).
		Order("scene_index ASC").
		Find(&scenes).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}
	return scenes, nil
}

// ReplaceForChapter 整体替换章节的场景拆解
func (r *SceneRepository) ReplaceForChapter(ctx context.Context, chapterID string, scenes []*entity.SceneFrame) error {
	ctx, span := tracer.Start(ctx, "postgres.SceneRepository.ReplaceForChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("chapter_id = ?", chapterID).Delete(&entity.SceneFrame{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete scenes: %w", err)
	}
	if len(scenes) == 0 {
		return nil
	}
	for _, s := range scenes {
		s.ChapterID = chapterID
	}
	if err := db.Create(&scenes).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert scenes: %w", err)
	}
	return nil
}
