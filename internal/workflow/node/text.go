package node

import "strings"

// TruncateByRunes 截取前 maxRunes 个字符，不会切断多字节字符
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	seen := 0
	for i := range s {
		if seen == maxRunes {
			return s[:i]
		}
		seen++
	}
	return s
}

// Preview 单行预览，用于日志中展示 LLM 输出片段
func Preview(s string, maxRunes int) string {
	s = strings.Join(strings.Fields(s), " ")
	if cut := TruncateByRunes(s, maxRunes); len(cut) < len(s) {
		return cut + "…"
	}
	return s
}
