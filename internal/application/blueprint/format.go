package blueprint

import (
	"fmt"
	"strconv"
	"strings"

	"z-novel-blueprint/internal/domain/entity"
)

// FormatChapter 按规范格式输出章节块
// 空字段不输出；ParseChapter(FormatChapter(c)) 还原全部非空字段。
func FormatChapter(c entity.ChapterRecord) string {
	var b strings.Builder
	if c.Title != "" {
		fmt.Fprintf(&b, "第%d章 - %s", c.Number, c.Title)
	} else {
		fmt.Fprintf(&b, "第%d章", c.Number)
	}
	writeField(&b, "本章定位", c.Role)
	writeField(&b, "核心作用", c.Purpose)
	writeField(&b, "悬念密度", c.SuspenseLevel)
	writeField(&b, "伏笔操作", c.Foreshadowing)
	writeField(&b, "认知颠覆", c.PlotTwistLevel)
	writeField(&b, "主角修为", formatCultivation(c.SurfaceCultivation, c.ActualCultivation))
	writeField(&b, "空间坐标", c.SceneLocation)
	writeField(&b, "本章简述", c.Summary)
	return b.String()
}

// FormatUnit 按规范格式输出单元块
func FormatUnit(u entity.UnitRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "第%d单元", u.Number)
	if u.Title != "" {
		fmt.Fprintf(&b, " - %s", u.Title)
	}
	if u.HasRange() {
		fmt.Fprintf(&b, "（包含章节：%d-%d章）", u.StartChapter, u.EndChapter)
	}
	writeField(&b, "本单元定位", u.Location)
	writeField(&b, "核心作用", u.Purpose)
	writeField(&b, "内容摘要", u.Summary)
	writeField(&b, "修为等级范围", u.CultivationRange)
	writeField(&b, "空间坐标范围", strings.Join(u.SpatialRange, " → "))
	writeField(&b, "推荐的跨章节写作手法", u.RecommendedTechniques)
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	b.WriteString("\n")
	b.WriteString(label)
	b.WriteString("：")
	b.WriteString(value)
}

func formatCultivation(surface, actual string) string {
	switch {
	case surface == actual:
		return actual
	case surface == "":
		return "表面修为 | 实际实力" + actual
	case actual == "":
		return "表面修为" + surface + " | 实际实力"
	default:
		return "表面修为" + surface + " | 实际实力" + actual
	}
}

// ChapterText 章节的文本表示：优先使用原文
func ChapterText(c entity.ChapterRecord) string {
	if strings.TrimSpace(c.Raw) != "" {
		return strings.TrimSpace(c.Raw)
	}
	return FormatChapter(c)
}

// UnitText 单元的文本表示：优先使用原文
func UnitText(u entity.UnitRecord) string {
	if strings.TrimSpace(u.Raw) != "" {
		return strings.TrimSpace(u.Raw)
	}
	return FormatUnit(u)
}

// SetActualCultivation 改写章节的实际修为，同时更新原文中的修为行
// 原文没有“|”分隔时表面与实际一起改写。
func (g *Grammar) SetActualCultivation(c entity.ChapterRecord, level string) entity.ChapterRecord {
	paired := c.SurfaceCultivation != c.ActualCultivation
	c.ActualCultivation = level
	if !paired {
		c.SurfaceCultivation = level
	}
	if strings.TrimSpace(c.Raw) == "" {
		return c
	}

	r, ok := rule(g.ChapterFields, FieldCultivation)
	if !ok {
		c.Raw = FormatChapter(c)
		return c
	}
	lines := strings.Split(c.Raw, "\n")
	for i, line := range lines[1:] {
		if name, _, ok := MatchField(g.ChapterFields, line); !ok || name != FieldCultivation {
			continue
		}
		loc := r.Pattern.FindStringSubmatchIndex(line)
		vi := r.Pattern.SubexpIndex("value")
		if loc == nil || loc[2*vi] < 0 {
			break
		}
		start, end := loc[2*vi], loc[2*vi+1]
		value := g.rewriteActual(line[start:end], level)
		lines[i+1] = line[:start] + value + line[end:]
		c.Raw = strings.Join(lines, "\n")
		return c
	}
	// 原文缺少修为行时追加一行
	c.Raw = strings.TrimSpace(c.Raw) + "\n主角修为：" + formatCultivation(c.SurfaceCultivation, c.ActualCultivation)
	return c
}

// rewriteActual 保留表面部分及标签，只替换实际部分
func (g *Grammar) rewriteActual(value, level string) string {
	loc := g.CultivationSplit.FindStringIndex(value)
	if loc == nil {
		return level
	}
	left, right := value[:loc[1]], strings.TrimSpace(value[loc[1]:])
	for _, prefix := range actualPrefixes {
		if strings.HasPrefix(right, prefix) {
			label := prefix
			rest := strings.TrimPrefix(right, prefix)
			if strings.HasPrefix(rest, "：") {
				label += "："
			} else if strings.HasPrefix(rest, ":") {
				label += ":"
			}
			return left + label + level
		}
	}
	return left + level
}

// SetUnitNumber 改写单元编号，同时更新原文标题行中的编号
func (g *Grammar) SetUnitNumber(u entity.UnitRecord, n int) entity.UnitRecord {
	u.Number = n
	if strings.TrimSpace(u.Raw) == "" {
		return u
	}
	raw := strings.TrimSpace(u.Raw)
	head, rest, _ := strings.Cut(raw, "\n")
	for _, v := range g.UnitHeaders {
		loc := v.Pattern.FindStringSubmatchIndex(head)
		ni := v.Pattern.SubexpIndex("num")
		if loc == nil || ni < 0 || loc[2*ni] < 0 {
			continue
		}
		head = head[:loc[2*ni]] + strconv.Itoa(n) + head[loc[2*ni+1]:]
		if rest != "" {
			head += "\n" + rest
		}
		u.Raw = head
		return u
	}
	u.Raw = FormatUnit(u)
	return u
}
