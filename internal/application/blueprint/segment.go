package blueprint

import (
	"regexp"
	"strings"

	"z-novel-blueprint/internal/domain/entity"
)

// BlockSeparator 渲染时块之间的分隔
const BlockSeparator = "\n\n"

var (
	codeFencePattern = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	rulePattern      = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|={3,})\s*$`)
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// Segment 将目录文本切分为块
// 任何被语法识别的标题行开启一个新块；第一个标题之前的文本作为片段块保留。
func (g *Grammar) Segment(text string) []entity.Block {
	text = normalizeNewlines(text)
	lines := strings.Split(text, "\n")

	var blocks []entity.Block
	var kind entity.BlockKind = entity.BlockKindFragment
	var buf []string

	flush := func() {
		raw := strings.TrimSpace(strings.Join(buf, "\n"))
		if raw != "" {
			blocks = append(blocks, entity.Block{Kind: kind, Raw: raw})
		}
		buf = buf[:0]
	}

	for _, line := range lines {
		if m, ok := g.MatchHeader(line); ok {
			flush()
			kind = m.Kind
		}
		buf = append(buf, strings.TrimRight(line, " \t"))
	}
	flush()
	return blocks
}

// Render 将块按顺序拼接为目录文本
// 对于 Segment 的输出，Segment(Render(blocks)) 与 blocks 相同。
func Render(blocks []entity.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		raw := strings.TrimSpace(b.Raw)
		if raw == "" {
			continue
		}
		parts = append(parts, raw)
	}
	return strings.Join(parts, BlockSeparator)
}

// CleanResponse 清理模型输出：去除代码围栏、分割线与多余空行
func CleanResponse(text string) string {
	text = normalizeNewlines(text)
	text = codeFencePattern.ReplaceAllString(text, "")
	text = rulePattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
