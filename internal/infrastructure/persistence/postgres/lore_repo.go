package postgres

import (
	"context"
	"fmt"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
)

// CharacterRepository 角色仓储实现
type CharacterRepository struct {
	client *Client
}

var _ repository.CharacterRepository = (*CharacterRepository)(nil)

// NewCharacterRepository 创建角色仓储
func NewCharacterRepository(client *Client) *CharacterRepository {
	return &CharacterRepository{client: client}
}

// ListByProject 获取项目全部角色
func (r *CharacterRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Character, error) {
	ctx, span := tracer.Start(ctx, "postgres.CharacterRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var characters []*entity.Character
	if err := db.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&characters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}

// SettingRepository 世界设定仓储实现
type SettingRepository struct {
	client *Client
}

var _ repository.SettingRepository = (*SettingRepository)(nil)

// NewSettingRepository 创建设定仓储
func NewSettingRepository(client *Client) *SettingRepository {
	return &SettingRepository{client: client}
}

// ListByProject 获取项目全部设定
func (r *SettingRepository) ListByProject(ctx context.Context, projectID string) ([]*entity.Setting, error) {
	ctx, span := tracer.Start(ctx, "postgres.SettingRepository.ListByProject")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var settings []*entity.Setting
	if err := db.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&settings).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}
