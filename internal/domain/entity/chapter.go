// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ChapterStatus 章节状态
type ChapterStatus string

const (
	ChapterStatusDraft      ChapterStatus = "draft"
	ChapterStatusGenerating ChapterStatus = "generating"
	ChapterStatusReview     ChapterStatus = "review"
	ChapterStatusCompleted  ChapterStatus = "completed"
)

// GenerationMetadata 生成元数据
type GenerationMetadata struct {
	Provider         string `json:"provider,omitempty"`
	Model            string `json:"model,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	ScenesTotal      int    `json:"scenes_total,omitempty"`
	ScenesCompleted  int    `json:"scenes_completed,omitempty"`
	ScenesFailed     int    `json:"scenes_failed,omitempty"`
	GeneratedAt      string `json:"generated_at,omitempty"`
}

// Chapter 章节实体
//
// OrderIndex 在项目内是稠密全序；Embedding 是异步刷新的缓存，
// 编辑后到下一次向量化之前可能为空或落后于 Version（见 EmbeddingVersion）。
type Chapter struct {
	ID                 string              `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID          string              `json:"project_id" gorm:"type:uuid;index;not null"`
	OrderIndex         int                 `json:"order_index" gorm:"not null;index"`
	Title              string              `json:"title,omitempty" gorm:"type:varchar(255)"`
	ContentText        string              `json:"content_text,omitempty" gorm:"type:text"`
	Summary            string              `json:"summary,omitempty" gorm:"type:text"`
	WordCount          int                 `json:"word_count" gorm:"default:0"`
	Status             ChapterStatus       `json:"status" gorm:"type:varchar(50);default:'draft'"`
	Embedding          []float32           `json:"-" gorm:"type:jsonb;serializer:json"`
	EmbeddingVersion   int                 `json:"embedding_version" gorm:"default:0"`
	GenerationMetadata *GenerationMetadata `json:"generation_metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	Version            int                 `json:"version" gorm:"default:1"`
	CreatedAt          time.Time           `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time           `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节
func NewChapter(projectID string, orderIndex int, title string) *Chapter {
	now := time.Now()
	return &Chapter{
		ProjectID:  projectID,
		OrderIndex: orderIndex,
		Title:      title,
		Status:     ChapterStatusDraft,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetContent 设置章节内容，并按 rune 数更新字数
func (c *Chapter) SetContent(content string) {
	c.ContentText = content
	c.WordCount = utf8.RuneCountInString(strings.TrimSpace(content))
	c.UpdatedAt = time.Now()
}

// IncrementVersion 增加版本号
func (c *Chapter) IncrementVersion() {
	c.Version++
	c.UpdatedAt = time.Now()
}

// HasEmbedding 是否有可用的预计算向量
func (c *Chapter) HasEmbedding() bool {
	return c != nil && len(c.Embedding) > 0
}

// EmbeddingStale 向量是否落后于当前内容版本
func (c *Chapter) EmbeddingStale() bool {
	return c == nil || len(c.Embedding) == 0 || c.EmbeddingVersion < c.Version
}
