package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// CharacterRepository 角色仓储接口
type CharacterRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]*entity.Character, error)
}

// SettingRepository 世界设定仓储接口
type SettingRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]*entity.Setting, error)
}
