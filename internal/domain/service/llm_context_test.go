package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithLLMCall(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))

	ctx = WithLLMCall(ctx, WorkflowSceneGeneration, " primary ")
	assert.Equal(t, "scene_generation", WorkflowFromContext(ctx))
	assert.Equal(t, "primary", ProviderFromContext(ctx))

	// 空值不覆盖外层标注
	inner := WithLLMCall(ctx, "", "backup")
	assert.Equal(t, "scene_generation", WorkflowFromContext(inner))
	assert.Equal(t, "backup", ProviderFromContext(inner))
}
