package generation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const defaultMinSceneRunes = 200

var defaultBannedPhrases = []string{
	"作为一个AI", "作为AI", "以下是", "```", "本章完", "未完待续", "（待续）",
}

// DefaultRuleChecker 长度下限为硬性条件，违禁短语只记警告
type DefaultRuleChecker struct {
	MinRunes int
	Banned   []string
}

func NewDefaultRuleChecker() *DefaultRuleChecker {
	return &DefaultRuleChecker{MinRunes: defaultMinSceneRunes, Banned: defaultBannedPhrases}
}

func (c *DefaultRuleChecker) Check(_ context.Context, text string) CheckResult {
	res := CheckResult{Passed: true, Warnings: []string{}}
	s := strings.TrimSpace(text)
	n := utf8.RuneCountInString(s)
	if n == 0 {
		res.Passed = false
		res.Warnings = append(res.Warnings, "scene text is empty")
		return res
	}
	if c.MinRunes > 0 && n < c.MinRunes {
		res.Passed = false
		res.Warnings = append(res.Warnings, fmt.Sprintf("scene text too short: %d < %d", n, c.MinRunes))
	}
	for _, p := range c.Banned {
		if p != "" && strings.Contains(s, p) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("contains banned phrase %q", p))
		}
	}
	return res
}
