package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-writer/internal/domain/service"
	wfmodel "z-novel-writer/internal/workflow/model"
	wfnode "z-novel-writer/internal/workflow/node"
	workflowport "z-novel-writer/internal/workflow/port"
	workflowprompt "z-novel-writer/internal/workflow/prompt"
	"z-novel-writer/pkg/logger"
)

// OutlineChain 生成一组候选章节大纲（一次假设）
type OutlineChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.OutlineSynthesisInput, *schema.Message]
	chainErr  error
}

func NewOutlineChain(factory workflowport.ChatModelFactory) *OutlineChain {
	return &OutlineChain{factory: factory}
}

func (c *OutlineChain) Invoke(ctx context.Context, in *wfmodel.OutlineSynthesisInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if in.TargetCount <= 0 {
		return nil, fmt.Errorf("target_count is required")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type outlineChainState struct {
	In       *wfmodel.OutlineSynthesisInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *OutlineChain) getChain() (compose.Runnable[*wfmodel.OutlineSynthesisInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *OutlineChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.OutlineSynthesisInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.OutlineSynthesisInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.OutlineSynthesisInput) (*outlineChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			msgs, err := formatOutlineMessages(ctx, in)
			if err != nil {
				return nil, err
			}
			return &outlineChainState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("outline.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *outlineChainState) (*schema.Message, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithLLMCall(ctx, llmctx.WorkflowOutlineSynthesis, provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildOutlineModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", provider,
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildOutlineModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			return outMsg, nil
		}),
		compose.WithNodeName("outline.llm"),
	)

	return chain.Compile(ctx)
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func formatOutlineMessages(ctx context.Context, in *wfmodel.OutlineSynthesisInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptOutlineSynthesisV1)
	if err != nil {
		return nil, err
	}
	vars := map[string]any{
		"project_title":  orNone(in.ProjectTitle),
		"genre":          orNone(in.Genre),
		"theme_tags":     orNone(strings.Join(in.ThemeTags, "、")),
		"prompt_context": orNone(in.PromptContext),
		"target_count":   in.TargetCount,
		"start_number":   in.StartIndex + 1,
	}
	return tpl.Format(ctx, vars)
}

func buildOutlineModelOptions(in *wfmodel.OutlineSynthesisInput, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
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
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "chapter_outlines",
					"strict": false,
					"schema": outlineJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func outlineJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strArr := map[string]any{"type": "array", "items": str}
	return map[string]any{
		"type":     "object",
		"required": []any{"outlines"},
		"properties": map[string]any{
			"outlines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"title", "oneLiner", "beats"},
					"properties": map[string]any{
						"title":            str,
						"oneLiner":         str,
						"beats":            strArr,
						"themeTags":        strArr,
						"conflictFocus":    str,
						"conflictCategory": str,
						"requiredEntities": strArr,
						"focalEntities":    strArr,
						"stakesDelta":      str,
						"entryState":       str,
						"exitState":        str,
					},
				},
			},
		},
	}
}
