package entity

import "time"

// SettingCategory 世界设定分类
type SettingCategory string

const (
	SettingCategoryGlobal   SettingCategory = "global"
	SettingCategoryRule     SettingCategory = "rule"
	SettingCategoryLocation SettingCategory = "location"
	SettingCategoryFaction  SettingCategory = "faction"
	SettingCategoryItem     SettingCategory = "item"
	SettingCategoryHistory  SettingCategory = "history"
)

// Setting 世界设定条目
type Setting struct {
	ID        string          `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string          `json:"project_id" gorm:"type:uuid;index;not null"`
	Title     string          `json:"title" gorm:"type:varchar(255);not null"`
	Category  SettingCategory `json:"category" gorm:"type:varchar(32);index"`
	Content   string          `json:"content" gorm:"type:text"`
	Embedding []float32       `json:"-" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}

// AlwaysIncluded 全局/规则类设定不参与预算竞争
func (s *Setting) AlwaysIncluded() bool {
	if s == nil {
		return false
	}
	return s.Category == SettingCategoryGlobal || s.Category == SettingCategoryRule
}
