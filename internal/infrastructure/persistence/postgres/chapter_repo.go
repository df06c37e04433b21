// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
)

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

var _ repository.ChapterRepository = (*ChapterRepository)(nil)

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// Update 更新章节
func (r *ChapterRepository) Update(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chapter: %w", err)
	}
	return nil
}

// ListByProject 获取项目全部章节（按 order_index 升序）
func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("project_id = ?", projectID).
		Order("order_index ASC").
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// UpdateEmbedding 写入预计算向量；旧版本的写入不会覆盖新版本
func (r *ChapterRepository) UpdateEmbedding(ctx context.Context, id string, vector []float32, version int) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.UpdateEmbedding")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Model(&entity.Chapter{}).
		Where("id = ? AND embedding_version <= ?", id, version).
		Select("embedding", "embedding_version").
		Updates(&entity.Chapter{Embedding: vector, EmbeddingVersion: version}).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update chapter embedding: %w", err)
	}
	return nil
}
