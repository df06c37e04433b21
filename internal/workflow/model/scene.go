package model

// SceneGenerateInput 单个场景的正文生成输入
type SceneGenerateInput struct {
	ProjectTitle string
	WritingStyle string
	POV          string

	ChapterTitle   string
	ChapterOutline string

	SceneIndex    int
	SceneCount    int
	ScenePurpose  string
	FocalEntities []string

	CharacterContext string
	SettingContext   string
	RecentContext    string
	RetrievedContext string
	PreviousScene    string

	TargetWordCount int

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}
