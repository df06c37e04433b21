package model

// OutlineSynthesisInput 一次候选大纲假设的生成输入
type OutlineSynthesisInput struct {
	ProjectTitle string
	Genre        string
	ThemeTags    []string

	// PromptContext 已组装的上下文（前情、设定、上层大纲等）
	PromptContext string
	TargetCount   int
	StartIndex    int

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}
