package generation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/domain/entity"
)

func TestDefaultRuleChecker(t *testing.T) {
	c := NewDefaultRuleChecker()
	ctx := context.Background()

	res := c.Check(ctx, "   ")
	assert.False(t, res.Passed)
	assert.Equal(t, []string{"scene text is empty"}, res.Warnings)

	res = c.Check(ctx, "林远拔剑。")
	assert.False(t, res.Passed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "too short")

	long := strings.Repeat("山风呼啸，林远握紧了剑柄。", 20) + "未完待续"
	res = c.Check(ctx, long)
	assert.True(t, res.Passed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "未完待续")
}

func TestBeatDecomposer_BuildsScenesFromBeats(t *testing.T) {
	outlines := &fakeOutlines{byParent: map[string]*entity.Outline{
		"c1": {Payload: entity.OutlinePayload{
			Title:            "下山",
			Beats:            []string{"林远辞别师父", " ", "苏晴在山道拦路", "夜宿破庙"},
			FocalEntities:    []string{"林远"},
			RequiredEntities: []string{"苏晴"},
		}},
	}}
	scenes := &fakeScenes{}
	d := NewBeatDecomposer(outlines, scenes)

	frames, err := d.Decompose(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, "林远辞别师父", frames[0].Purpose)
	assert.Equal(t, []string{"林远"}, frames[0].FocalEntities)

	assert.Equal(t, 1, frames[1].Index)
	assert.Equal(t, []string{"苏晴"}, frames[1].FocalEntities)

	// 节拍里没有点名任何人物时沿用大纲焦点人物
	assert.Equal(t, 2, frames[2].Index)
	assert.Equal(t, []string{"林远"}, frames[2].FocalEntities)

	assert.Equal(t, frames, scenes.saved)
}

func TestBeatDecomposer_ReusesPersistedScenes(t *testing.T) {
	existing := []*entity.SceneFrame{{ChapterID: "c1", Index: 0, Purpose: "已有场景"}}
	d := NewBeatDecomposer(&fakeOutlines{}, &fakeScenes{existing: existing})

	frames, err := d.Decompose(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, existing, frames)
}

func TestBeatDecomposer_MissingOutline(t *testing.T) {
	d := NewBeatDecomposer(&fakeOutlines{byParent: map[string]*entity.Outline{}}, nil)
	_, err := d.Decompose(context.Background(), "c1")
	assert.Error(t, err)

	empty := &fakeOutlines{byParent: map[string]*entity.Outline{"c1": {Payload: entity.OutlinePayload{Title: "空"}}}}
	_, err = NewBeatDecomposer(empty, nil).Decompose(context.Background(), "c1")
	assert.Error(t, err)
}

func names(cs []*entity.Character) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Name)
	}
	return out
}

func TestSelectCharacters_Tiers(t *testing.T) {
	all := []*entity.Character{
		{Name: "小六", Role: entity.CharacterRoleMinor},
		{Name: "苏晴", Role: entity.CharacterRoleSupporting},
		{Name: "赵五", Role: entity.CharacterRoleSupporting},
		{Name: "林远", Aliases: []string{"阿远"}, Role: entity.CharacterRoleProtagonist},
		{Name: "黑风", Role: entity.CharacterRoleAntagonist},
	}
	scene := &entity.SceneFrame{FocalEntities: []string{"黑风"}}
	outline := &entity.OutlinePayload{RequiredEntities: []string{"苏晴"}}
	corpus := "赵五喊了一声。赵五又喊。赵五走了。苏晴没说话。"

	got := SelectCharacters(all, scene, outline, corpus, 4, 3)
	assert.Equal(t, []string{"黑风", "苏晴", "林远", "赵五"}, names(got))

	got = SelectCharacters(all, scene, outline, corpus, 2, 3)
	assert.Equal(t, []string{"黑风", "苏晴"}, names(got))

	// 别名同样可以命中
	got = SelectCharacters(all, &entity.SceneFrame{FocalEntities: []string{"阿远"}}, nil, "", 1, 1)
	assert.Equal(t, []string{"林远"}, names(got))
}

func TestSelectCharacters_FloorFillsByFrequency(t *testing.T) {
	all := []*entity.Character{
		{Name: "甲", Role: entity.CharacterRoleMinor},
		{Name: "乙", Role: entity.CharacterRoleMinor},
		{Name: "丙", Role: entity.CharacterRoleMinor},
		{Name: "丁", Role: entity.CharacterRoleMinor},
	}
	got := SelectCharacters(all, nil, nil, "丙丙丙乙乙", 7, 3)
	assert.Equal(t, []string{"丙", "乙", "甲"}, names(got))
}

func TestRenderCharacters(t *testing.T) {
	got := RenderCharacters([]*entity.Character{
		{Name: "林远", Aliases: []string{"阿远"}, Role: entity.CharacterRoleProtagonist, Description: "青云门弟子\n性格坚毅"},
		{Name: "小六"},
	})
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "- 林远（又名 阿远） [protagonist]："))
	assert.Equal(t, "- 小六", lines[1])
}
