// Package prompt 管理内嵌的 Prompt 模板（eino FString 语法，字面量花括号需写成 {{ }}）。
package prompt

import (
	"embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

// PromptID 模板标识，对应 templates/<id>.system.txt 与 templates/<id>.user.txt
type PromptID string

const (
	PromptSceneGenV1         PromptID = "scene_gen_v1"
	PromptOutlineSynthesisV1 PromptID = "outline_synthesis_v1"
)

var knownPrompts = []PromptID{PromptSceneGenV1, PromptOutlineSynthesisV1}

// Registry 创建时一次性载入全部模板，之后只读
type Registry struct {
	templates map[PromptID]einoprompt.ChatTemplate
	errs      map[PromptID]error
}

// NewRegistry 载入内嵌模板；单个模板缺失只影响使用它的流程
func NewRegistry() *Registry {
	r := &Registry{
		templates: make(map[PromptID]einoprompt.ChatTemplate, len(knownPrompts)),
		errs:      make(map[PromptID]error),
	}
	for _, id := range knownPrompts {
		tpl, err := loadTemplate(id)
		if err != nil {
			r.errs[id] = err
			continue
		}
		r.templates[id] = tpl
	}
	return r
}

// ChatTemplate 返回 system + user 两段消息组成的模板
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}
	if err, ok := r.errs[id]; ok {
		return nil, err
	}
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("unknown prompt id: %s", id)
	}
	return tpl, nil
}

func loadTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	system, err := readTemplate(id, "system")
	if err != nil {
		return nil, err
	}
	user, err := readTemplate(id, "user")
	if err != nil {
		return nil, err
	}
	return einoprompt.FromMessages(schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	), nil
}

func readTemplate(id PromptID, role string) (string, error) {
	path := fmt.Sprintf("templates/%s.%s.txt", id, role)
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load prompt %s: %w", id, err)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", fmt.Errorf("load prompt %s: %s is empty", id, path)
	}
	return text, nil
}
