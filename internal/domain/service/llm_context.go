// Package service 定义跨层共享的领域上下文约定。
package service

import (
	"context"
	"strings"
)

// Workflow 发起模型调用的业务流程，用作指标与 span 的标签
type Workflow string

const (
	WorkflowOutlineSynthesis Workflow = "outline_synthesis"
	WorkflowSceneGeneration  Workflow = "scene_generation"
)

const unknownLabel = "unknown"

type llmCallKey struct{}

// llmCall 一次模型调用的归属
type llmCall struct {
	workflow Workflow
	provider string
}

// WithLLMCall 标注后续模型调用所属的流程与供应商；空值沿用外层标注
func WithLLMCall(ctx context.Context, workflow Workflow, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	call, _ := ctx.Value(llmCallKey{}).(llmCall)
	if w := Workflow(strings.TrimSpace(string(workflow))); w != "" {
		call.workflow = w
	}
	if p := strings.TrimSpace(provider); p != "" {
		call.provider = p
	}
	return context.WithValue(ctx, llmCallKey{}, call)
}

// WorkflowFromContext 未标注时返回 "unknown"
func WorkflowFromContext(ctx context.Context) string {
	if call, ok := callFrom(ctx); ok && call.workflow != "" {
		return string(call.workflow)
	}
	return unknownLabel
}

// ProviderFromContext 未标注时返回 "unknown"；空供应商名即默认供应商
func ProviderFromContext(ctx context.Context) string {
	if call, ok := callFrom(ctx); ok && call.provider != "" {
		return call.provider
	}
	return unknownLabel
}

func callFrom(ctx context.Context) (llmCall, bool) {
	if ctx == nil {
		return llmCall{}, false
	}
	call, ok := ctx.Value(llmCallKey{}).(llmCall)
	return call, ok
}
