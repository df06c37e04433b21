package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
)

// OutlineRepository 大纲仓储实现
type OutlineRepository struct {
	client *Client
}

var _ repository.OutlineRepository = (*OutlineRepository)(nil)

// NewOutlineRepository 创建大纲仓储
func NewOutlineRepository(client *Client) *OutlineRepository {
	return &OutlineRepository{client: client}
}

// GetByParent 获取结构节点对应的大纲
func (r *OutlineRepository) GetByParent(ctx context.Context, kind entity.OutlineKind, parentID string) (*entity.Outline, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.GetByParent")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var outline entity.Outline
	if err := db.First(&outline, "kind = ? AND parent_id = ?", kind, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get outline: %w", err)
	}
	return &outline, nil
}

// ListByProject 获取项目某层级的全部大纲
func (r *OutlineRepository) ListByProject(ctx context.Context, projectID string, kind entity.OutlineKind) ([]*entity.Outline, error) {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var outlines []*entity.Outline
	if err := db.Where("project_id = ? AND kind = ?", projectID, kind).
		Order("order_index ASC").
		Find(&outlines).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list outlines: %w", err)
	}
	return outlines, nil
}

// ReplaceAll 整体替换项目某层级的大纲；调用方负责外层事务
func (r *OutlineRepository) ReplaceAll(ctx context.Context, projectID string, kind entity.OutlineKind, outlines []*entity.Outline) error {
	ctx, span := tracer.Start(ctx, "postgres.OutlineRepository.ReplaceAll")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Where("project_id = ? AND kind = ?", projectID, kind).
		Delete(&entity.Outline{}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete outlines: %w", err)
	}
	if len(outlines) == 0 {
		return nil
	}
	for _, o := range outlines {
		o.ProjectID = projectID
		o.Kind = kind
	}
	if err := db.Create(&outlines).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert outlines: %w", err)
	}
	return nil
}
