package generation

import (
	"fmt"
	"sort"
	"strings"

	"z-novel-writer/internal/application/story/storyutil"
	"z-novel-writer/internal/domain/entity"
)

const (
	defaultCharacterCap   = 7
	defaultCharacterFloor = 3
)

// SelectCharacters 按优先级分层挑选场景需要的人物：
// 场景焦点人物 > 本章大纲必需人物 > 主角 > 按出现频次排序的配角，填满 cap 为止；
// 不足 floor 时再从剩余人物中按频次补齐。
func SelectCharacters(
	all []*entity.Character,
	scene *entity.SceneFrame,
	outline *entity.OutlinePayload,
	corpus string,
	capN, floor int,
) []*entity.Character {
	if capN <= 0 {
		capN = defaultCharacterCap
	}
	if floor <= 0 {
		floor = defaultCharacterFloor
	}
	if floor > capN {
		floor = capN
	}

	freq := make(map[*entity.Character]int, len(all))
	for _, c := range all {
		if c == nil {
			continue
		}
		for _, n := range c.Names() {
			freq[c] += storyutil.CountOccurrences(corpus, n)
		}
	}

	picked := make([]*entity.Character, 0, capN)
	seen := make(map[*entity.Character]struct{}, capN)
	add := func(c *entity.Character) {
		if c == nil || len(picked) >= capN {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		picked = append(picked, c)
	}

	if scene != nil {
		for _, name := range scene.FocalEntities {
			add(findCharacter(all, name))
		}
	}
	if outline != nil {
		for _, name := range outline.RequiredEntities {
			add(findCharacter(all, name))
		}
	}
	for _, c := range all {
		if c != nil && c.Role == entity.CharacterRoleProtagonist {
			add(c)
		}
	}
	supporting := make([]*entity.Character, 0)
	for _, c := range all {
		if c != nil && c.Role == entity.CharacterRoleSupporting {
			supporting = append(supporting, c)
		}
	}
	sortByFrequency(supporting, freq)
	for _, c := range supporting {
		add(c)
	}

	if len(picked) < floor {
		rest := make([]*entity.Character, 0)
		for _, c := range all {
			if c == nil {
				continue
			}
			if _, ok := seen[c]; !ok {
				rest = append(rest, c)
			}
		}
		sortByFrequency(rest, freq)
		for _, c := range rest {
			if len(picked) >= floor {
				break
			}
			add(c)
		}
	}
	return picked
}

func findCharacter(all []*entity.Character, name string) *entity.Character {
	n := strings.TrimSpace(name)
	if n == "" {
		return nil
	}
	for _, c := range all {
		if c == nil {
			continue
		}
		for _, alias := range c.Names() {
			if strings.EqualFold(alias, n) {
				return c
			}
		}
	}
	return nil
}

func sortByFrequency(cs []*entity.Character, freq map[*entity.Character]int) {
	sort.SliceStable(cs, func(i, j int) bool { return freq[cs[i]] > freq[cs[j]] })
}

// RenderCharacters 渲染人物档案块
func RenderCharacters(cs []*entity.Character) string {
	lines := make([]string, 0, len(cs))
	for _, c := range cs {
		line := fmt.Sprintf("- %s", c.Name)
		if len(c.Aliases) > 0 {
			line += fmt.Sprintf("（又名 %s）", strings.Join(c.Aliases, "、"))
		}
		if c.Role != "" {
			line += fmt.Sprintf(" [%s]", c.Role)
		}
		if d := strings.TrimSpace(c.Description); d != "" {
			line += "：" + storyutil.CompactOneLine(d)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
