package entity

import "time"

// SceneFrame 章节拆解出的场景单元，生成时只读
type SceneFrame struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChapterID     string    `json:"chapter_id" gorm:"type:uuid;index;not null"`
	Index         int       `json:"index" gorm:"column:scene_index;not null"`
	Purpose       string    `json:"purpose" gorm:"type:text"`
	FocalEntities []string  `json:"focal_entities,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SceneFrame) TableName() string {
	return "scene_frames"
}
