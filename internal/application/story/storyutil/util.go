// Package storyutil 提供选择、检索、合成共用的文本度量与清洗函数。
package storyutil

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// ExtractJSON 从模型输出中取出第一段完整的 JSON 对象或数组。
// 模型常在 JSON 前后附带说明文字或 ``` 代码围栏；找不到合法 JSON 时返回去除首尾空白的原文，
// 由调用方的解析报错。
func ExtractJSON(s string) string {
	raw := strings.TrimSpace(s)
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		var msg json.RawMessage
		if err := json.NewDecoder(strings.NewReader(raw[i:])).Decode(&msg); err == nil {
			return string(msg)
		}
	}
	return raw
}

// TruncateByRunes 保留前 maxRunes 个字符
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	end := 0
	for n := 0; n < maxRunes; n++ {
		if end >= len(s) {
			return s
		}
		_, size := utf8.DecodeRuneInString(s[end:])
		end += size
	}
	return s[:end]
}
