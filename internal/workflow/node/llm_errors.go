// Package node 存放工作流节点共用的判定逻辑。
package node

import "strings"

// 兼容 OpenAI 协议的供应商拒绝结构化输出参数时，报错中常见的片段（均为小写）
var responseFormatRejections = [][]string{
	{"response_format"},
	{"response_schema"},
	{"json_schema"},
	{"unknown parameter", "response"},
	{"invalid", "response"},
	{"failed to parse"},
}

// IsResponseFormatUnsupportedError 判断错误是否因供应商不支持 response_format；
// 大纲合成据此去掉 JSON Schema 约束再试一次，其余错误不重试
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, parts := range responseFormatRejections {
		if containsAll(msg, parts) {
			return true
		}
	}
	return false
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
