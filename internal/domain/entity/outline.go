package entity

import (
	"fmt"
	"strings"
	"time"
)

// OutlineKind 大纲层级
type OutlineKind string

const (
	OutlineKindMain    OutlineKind = "main"
	OutlineKindVolume  OutlineKind = "volume"
	OutlineKindChapter OutlineKind = "chapter"
)

// Valid 是否为已知层级
func (k OutlineKind) Valid() bool {
	switch k {
	case OutlineKindMain, OutlineKindVolume, OutlineKindChapter:
		return true
	default:
		return false
	}
}

// OutlinePayload 大纲结构化内容（持久化形状）
type OutlinePayload struct {
	Title            string   `json:"title"`
	OneLiner         string   `json:"oneLiner"`
	Beats            []string `json:"beats"`
	ThemeTags        []string `json:"themeTags"`
	RequiredEntities []string `json:"requiredEntities"`
	FocalEntities    []string `json:"focalEntities"`
	StakesDelta      string   `json:"stakesDelta,omitempty"`
	EntryState       string   `json:"entryState,omitempty"`
	ExitState        string   `json:"exitState,omitempty"`
	ConflictFocus    string   `json:"conflictFocus,omitempty"`
	OrderIndex       int      `json:"orderIndex"`
}

// Validate 在系统边界按层级校验一次，之后组件间只传递强类型结构
func (p *OutlinePayload) Validate(kind OutlineKind) error {
	if p == nil {
		return fmt.Errorf("outline payload is nil")
	}
	if !kind.Valid() {
		return fmt.Errorf("unknown outline kind: %q", kind)
	}
	if strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.OneLiner) == "" {
		return fmt.Errorf("outline requires title or oneLiner")
	}
	if kind == OutlineKindChapter && len(nonEmpty(p.Beats)) == 0 {
		return fmt.Errorf("chapter outline requires at least one beat")
	}
	if p.OrderIndex < 0 {
		return fmt.Errorf("orderIndex must be >= 0")
	}
	return nil
}

// HasBeats 是否有非空节拍
func (p *OutlinePayload) HasBeats() bool {
	return p != nil && len(nonEmpty(p.Beats)) > 0
}

// HasExitState 是否有结束状态描述
func (p *OutlinePayload) HasExitState() bool {
	return p != nil && strings.TrimSpace(p.ExitState) != ""
}

// Outline 大纲实体（每个结构节点一份，重新生成时整体替换）
type Outline struct {
	ID         string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID  string         `json:"project_id" gorm:"type:uuid;index;not null"`
	Kind       OutlineKind    `json:"kind" gorm:"type:varchar(20);not null;index"`
	ParentID   *string        `json:"parent_id,omitempty" gorm:"type:uuid;index"` // 章节大纲: chapter_id；总纲或尚无对应章节时为空
	OrderIndex int            `json:"order_index" gorm:"not null"`
	Payload    OutlinePayload `json:"payload" gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Outline) TableName() string {
	return "outlines"
}

// Parent 返回父节点 ID，无父节点时为空串
func (o *Outline) Parent() string {
	if o == nil || o.ParentID == nil {
		return ""
	}
	return *o.ParentID
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
