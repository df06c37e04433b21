// Package port 声明工作流层向基础设施索取的能力。
package port

import (
	"context"

	"github.com/cloudwego/eino/components/model"
)

// ChatModelFactory 按供应商名取得对话模型。
// name 为空表示默认供应商；大纲合成的主/备模型与逐场景生成都经由它取模型，
// 供应商未配置或不可用时返回错误，由调用方决定降级还是失败。
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}
