package entity

import "time"

// CharacterRole 角色定位
type CharacterRole string

const (
	CharacterRoleProtagonist CharacterRole = "protagonist"
	CharacterRoleAntagonist  CharacterRole = "antagonist"
	CharacterRoleSupporting  CharacterRole = "supporting"
	CharacterRoleMinor       CharacterRole = "minor"
)

// Character 角色档案
type Character struct {
	ID          string        `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID   string        `json:"project_id" gorm:"type:uuid;index;not null"`
	Name        string        `json:"name" gorm:"type:varchar(255);not null"`
	Aliases     []string      `json:"aliases,omitempty" gorm:"type:jsonb;serializer:json"`
	Role        CharacterRole `json:"role" gorm:"type:varchar(32);default:'supporting'"`
	Description string        `json:"description,omitempty" gorm:"type:text"`
	CreatedAt   time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Character) TableName() string {
	return "characters"
}

// Names 返回名称与别名
func (c *Character) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, 1+len(c.Aliases))
	if c.Name != "" {
		out = append(out, c.Name)
	}
	for _, a := range c.Aliases {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
