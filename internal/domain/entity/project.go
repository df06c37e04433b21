// Package entity 定义领域实体
package entity

import (
	"time"
)

// ProjectStatus 项目状态
type ProjectStatus string

const (
	ProjectStatusDraft     ProjectStatus = "draft"
	ProjectStatusWriting   ProjectStatus = "writing"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// ProjectSettings 项目写作设置
type ProjectSettings struct {
	DefaultChapterLength int    `json:"default_chapter_length,omitempty"`
	WritingStyle         string `json:"writing_style,omitempty"`
	POV                  string `json:"pov,omitempty"`
}

// Project 小说项目实体
type Project struct {
	ID          string           `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string           `json:"title" gorm:"type:varchar(255);not null"`
	Description string           `json:"description,omitempty" gorm:"type:text"`
	Genre       string           `json:"genre,omitempty" gorm:"type:varchar(100)"`
	ThemeTags   []string         `json:"theme_tags,omitempty" gorm:"type:jsonb;serializer:json"`
	Settings    *ProjectSettings `json:"settings,omitempty" gorm:"type:jsonb;serializer:json"`
	Status      ProjectStatus    `json:"status" gorm:"type:varchar(50);default:'draft'"`
	CreatedAt   time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// WritingStyle 返回写作风格（可能为空）
func (p *Project) WritingStyle() string {
	if p == nil || p.Settings == nil {
		return ""
	}
	return p.Settings.WritingStyle
}

// POV 返回叙事视角（可能为空）
func (p *Project) POV() string {
	if p == nil || p.Settings == nil {
		return ""
	}
	return p.Settings.POV
}

// TargetSceneLength 每个场景的目标字数（按章节默认长度粗分）
func (p *Project) TargetSceneLength(sceneCount int) int {
	total := 3000
	if p != nil && p.Settings != nil && p.Settings.DefaultChapterLength > 0 {
		total = p.Settings.DefaultChapterLength
	}
	if sceneCount <= 0 {
		return total
	}
	return total / sceneCount
}
