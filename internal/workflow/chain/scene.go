package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-writer/internal/domain/service"
	wfmodel "z-novel-writer/internal/workflow/model"
	workflowport "z-novel-writer/internal/workflow/port"
	workflowprompt "z-novel-writer/internal/workflow/prompt"
)

// SceneChain 逐场景正文生成
type SceneChain struct {
	factory workflowport.ChatModelFactory
}

func NewSceneChain(factory workflowport.ChatModelFactory) *SceneChain {
	return &SceneChain{factory: factory}
}

// Stream 返回 Eino StreamReader；调用方负责 Close()。
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息，用于 Token 统计。
func (c *SceneChain) Stream(ctx context.Context, in *wfmodel.SceneGenerateInput) (*schema.StreamReader[*schema.Message], error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if err := validateSceneInput(in); err != nil {
		return nil, err
	}

	ctx = llmctx.WithLLMCall(ctx, llmctx.WorkflowSceneGeneration, in.Provider)
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatSceneMessages(ctx, in)
	if err != nil {
		return nil, err
	}
	return chatModel.Stream(ctx, msgs, buildSceneModelOptions(in)...)
}

func validateSceneInput(in *wfmodel.SceneGenerateInput) error {
	if in == nil {
		return fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.ScenePurpose) == "" {
		return fmt.Errorf("scene purpose is required")
	}
	if in.TargetWordCount <= 0 {
		return fmt.Errorf("target_word_count is required")
	}
	return nil
}

func formatSceneMessages(ctx context.Context, in *wfmodel.SceneGenerateInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptSceneGenV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"project_title":     strings.TrimSpace(in.ProjectTitle),
		"writing_style":     orNone(in.WritingStyle),
		"pov":               orNone(in.POV),
		"chapter_title":     strings.TrimSpace(in.ChapterTitle),
		"chapter_outline":   orNone(in.ChapterOutline),
		"scene_number":      in.SceneIndex + 1,
		"scene_count":       in.SceneCount,
		"scene_purpose":     strings.TrimSpace(in.ScenePurpose),
		"focal_entities":    orNone(strings.Join(in.FocalEntities, "、")),
		"character_context": orNone(in.CharacterContext),
		"setting_context":   orNone(in.SettingContext),
		"recent_context":    orNone(in.RecentContext),
		"retrieved_context": strings.TrimSpace(in.RetrievedContext),
		"previous_scene":    orNone(in.PreviousScene),
		"target_word_count": in.TargetWordCount,
	}
	return tpl.Format(ctx, vars)
}

func buildSceneModelOptions(in *wfmodel.SceneGenerateInput) []model.Option {
	opts := make([]model.Option, 0, 3)
	if in == nil {
		return opts
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if strings.TrimSpace(in.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(in.Model)))
	}
	return opts
}

func orNone(s string) string {
	if v := strings.TrimSpace(s); v != "" {
		return v
	}
	return "（无）"
}
