package retrieval

import (
	"fmt"
	"math"
	"strings"
)

const promptAdvisory = "以下片段检索自邻近章节，仅用于保持情节与人物的连贯性，不是权威设定：" +
	"若与本章大纲或世界设定冲突，以大纲和设定为准；请勿照抄原文。"

// BuildPromptContext 将召回结果格式化为可直接注入 Prompt 的块。
// 每条附带来源与百分比相关度；无结果时返回空串。
func BuildPromptContext(contexts []RetrievedContext) string {
	if len(contexts) == 0 {
		return ""
	}

	lines := make([]string, 0, len(contexts)*2+2)
	lines = append(lines, "【参考资料】", promptAdvisory)
	n := 0
	for _, c := range contexts {
		txt := strings.TrimSpace(c.Excerpt)
		if txt == "" {
			continue
		}
		n++
		lines = append(lines, fmt.Sprintf("[%d] %s（相关度 %d%%）", n, c.Label, percent(c.Score)), txt)
	}
	if n == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func percent(score float64) int {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return int(math.Round(score * 100))
}
