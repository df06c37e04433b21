// Package generation 逐场景驱动章节正文生成，并以事件流的形式向调用方汇报进度。
package generation

import "time"

// EventType 事件类型
type EventType string

const (
	EventConnected        EventType = "connected"
	EventProgress         EventType = "progress"
	EventScenesDecomposed EventType = "scenes_decomposed"
	EventSceneStart       EventType = "scene_start"
	EventSceneChunk       EventType = "scene_content_chunk"
	EventSceneCompleted   EventType = "scene_completed"
	EventSceneFailed      EventType = "scene_failed"
	EventCompleted        EventType = "completed"
	EventError            EventType = "error"
)

// Terminal 是否为终止事件
func (t EventType) Terminal() bool {
	return t == EventCompleted || t == EventError
}

// SceneInfo 拆解出的场景概要
type SceneInfo struct {
	Index         int      `json:"index"`
	Purpose       string   `json:"purpose"`
	FocalEntities []string `json:"focal_entities,omitempty"`
}

// Summary 一次生成的汇总
type Summary struct {
	ScenesTotal      int   `json:"scenes_total"`
	ScenesCompleted  int   `json:"scenes_completed"`
	ScenesFailed     int   `json:"scenes_failed"`
	WordCount        int   `json:"word_count"`
	PromptTokens     int   `json:"prompt_tokens,omitempty"`
	CompletionTokens int   `json:"completion_tokens,omitempty"`
	DurationMs       int64 `json:"duration_ms"`
}

// Event 生成事件（调用方可见的全部契约）
type Event struct {
	Type         EventType `json:"type"`
	Seq          int       `json:"seq"`
	GenerationID string    `json:"generation_id"`
	ChapterID    string    `json:"chapter_id"`
	Timestamp    time.Time `json:"ts"`

	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`

	SceneIndex *int        `json:"scene_index,omitempty"`
	Scenes     []SceneInfo `json:"scenes,omitempty"`
	Delta      string      `json:"delta,omitempty"`

	WordCount int      `json:"word_count,omitempty"`
	Passed    *bool    `json:"passed,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`

	Code    string   `json:"code,omitempty"`
	Error   string   `json:"error,omitempty"`
	Summary *Summary `json:"summary,omitempty"`

	err error
}

// Err 返回 error 事件携带的原始错误
func (e Event) Err() error {
	return e.err
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }
