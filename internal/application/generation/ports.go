package generation

import (
	"context"
	"errors"

	"z-novel-writer/internal/domain/entity"
)

var (
	// ErrNoProvider 未配置可用的生成模型
	ErrNoProvider = errors.New("no generation provider configured")
	// ErrChapterNotFound 章节不存在
	ErrChapterNotFound = errors.New("chapter not found")
	// ErrAlreadyRunning 同一章节已有生成在进行
	ErrAlreadyRunning = errors.New("generation already running")
	// ErrNoScenes 拆解结果为空
	ErrNoScenes = errors.New("chapter decomposed into zero scenes")
)

// Decomposer 将章节拆解为有序场景
type Decomposer interface {
	Decompose(ctx context.Context, chapterID string) ([]*entity.SceneFrame, error)
}

// CheckResult 规则检查结果
type CheckResult struct {
	Passed   bool     `json:"passed"`
	Warnings []string `json:"warnings"`
}

// RuleChecker 对单个场景正文做基础规则检查
type RuleChecker interface {
	Check(ctx context.Context, text string) CheckResult
}

// TaskQueue 异步任务投递（至少一次），结果不影响生成结果
type TaskQueue interface {
	Enqueue(ctx context.Context, jobType string, payload any) error
}
