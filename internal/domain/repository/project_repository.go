package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// ProjectRepository 项目仓储接口
type ProjectRepository interface {
	// GetByID 根据 ID 获取项目，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Project, error)
}
