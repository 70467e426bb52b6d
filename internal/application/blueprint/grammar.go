// Package blueprint 实现章节目录（蓝图）文本模型：语法、分块、解析、合并与渲染。
//
// 目录文本由 LLM 生成，格式并不稳定。语法被组织为若干具名变体，按顺序尝试、先匹配者胜出；
// 解析永远不报错，无法识别的字段留空，无法识别的块直接跳过。
package blueprint

import (
	"regexp"
	"strings"
	"sync"

	"z-novel-blueprint/internal/domain/entity"
)

// FieldName 字段名
type FieldName string

// 章节字段
const (
	FieldRole          FieldName = "role"
	FieldPurpose       FieldName = "purpose"
	FieldSuspense      FieldName = "suspense"
	FieldForeshadowing FieldName = "foreshadowing"
	FieldPlotTwist     FieldName = "plot_twist"
	FieldCultivation   FieldName = "cultivation"
	FieldScene         FieldName = "scene"
	FieldSummary       FieldName = "summary"
)

// 单元字段
const (
	FieldUnitLocation     FieldName = "unit_location"
	FieldUnitPurpose      FieldName = "unit_purpose"
	FieldUnitSummary      FieldName = "unit_summary"
	FieldCultivationRange FieldName = "cultivation_range"
	FieldSpatialRange     FieldName = "spatial_range"
	FieldTechniques       FieldName = "recommended_techniques"
	FieldChapterRange     FieldName = "chapter_range"
)

const (
	numeralClass = `\d+|[零〇一二两三四五六七八九十百千]+`
	rangeSep     = `(?:[-—–~～至到]+|to)`
	headingLead  = `^\s*(?:#{1,4}\s*)?`
)

// HeaderVariant 一种标题行写法
// Pattern 使用命名分组：num、title、start、end（后两者可选）。
type HeaderVariant struct {
	Name    string
	Kind    entity.BlockKind
	Pattern *regexp.Regexp
}

// HeaderMatch 标题行匹配结果
type HeaderMatch struct {
	Kind    entity.BlockKind
	Variant string
	Number  int
	Title   string
	Start   int
	End     int
}

// FieldRule 字段行规则
type FieldRule struct {
	Name    FieldName
	Aliases []string
	Pattern *regexp.Regexp
}

// Grammar 目录文本语法。构造后只读，可在多个 Parser 间共享。
type Grammar struct {
	ChapterHeaders []HeaderVariant
	UnitHeaders    []HeaderVariant
	ChapterFields  []FieldRule
	UnitFields     []FieldRule

	// CultivationSplit 章节修为字段中“表面 | 实际”的分隔
	CultivationSplit *regexp.Regexp
	// BoundSplit 单元修为范围“起 | 止”的分隔
	BoundSplit *regexp.Regexp
	// WaypointSplit 空间坐标范围的路径分隔
	WaypointSplit *regexp.Regexp
	// ChapterRangeValue 单元正文中“包含章节：3-5”取值
	ChapterRangeValue *regexp.Regexp

	// FallbackUnitWidth 单元区间无法解析时假定的每单元章节数（近似值，不作保证）
	FallbackUnitWidth int
}

var (
	defaultGrammarOnce sync.Once
	defaultGrammar     *Grammar
)

// DefaultGrammar 返回共享的默认语法
func DefaultGrammar() *Grammar {
	defaultGrammarOnce.Do(func() {
		defaultGrammar = NewGrammar(5)
	})
	return defaultGrammar
}

// NewGrammar 构建默认语法
func NewGrammar(fallbackUnitWidth int) *Grammar {
	if fallbackUnitWidth <= 0 {
		fallbackUnitWidth = 5
	}
	return &Grammar{
		ChapterHeaders: []HeaderVariant{
			{
				// **第3章 - 标题**，也接受提前闭合（**第3章** - 标题）或未闭合
				Name:    "bold",
				Kind:    entity.BlockKindChapter,
				Pattern: regexp.MustCompile(headingLead + `\*\*\s*第\s*(?P<num>\d+)\s*章\s*(?:\*\*)?(?:(?:\s*[-—–:：]\s*|\s+)(?P<title>.*?))?\s*(?:\*\*)?\s*$`),
			},
			{
				// 第3章 - 标题，允许结尾残留的 **
				Name:    "plain",
				Kind:    entity.BlockKindChapter,
				Pattern: regexp.MustCompile(headingLead + `第\s*(?P<num>\d+)\s*章(?:(?:\s*[-—–:：]\s*|\s+)(?P<title>[^\[【\s\-—–:：*].*?))?\**\s*$`),
			},
			{
				// 第3章 - [标题]
				Name:    "bracket",
				Kind:    entity.BlockKindChapter,
				Pattern: regexp.MustCompile(headingLead + `(?:\*\*)?\s*第\s*(?P<num>\d+)\s*章\s*(?:[-—–:：]\s*)?[\[【](?P<title>[^\]】]*)[\]】]\s*(?:\*\*)?\s*$`),
			},
		},
		UnitHeaders: []HeaderVariant{
			{
				// 第1单元 - 标题（包含章节：3-5章），括号也可以是 [] 或 【】
				Name: "ranged",
				Kind: entity.BlockKindUnit,
				Pattern: regexp.MustCompile(headingLead + `(?:\*\*)?\s*第\s*(?P<num>` + numeralClass + `)\s*(?:单元|集群)(?:\s*[-—–:：]\s*|\s+)?(?P<title>.*?)\s*[（(\[【]\s*(?:(?:包含章节|章节范围|章节)\s*[:：]?\s*)?第?\s*(?P<start>\d+)\s*` +
					rangeSep + `\s*(?P<end>\d+)\s*章?\s*[）)\]】]\s*(?:\*\*)?\s*$`),
			},
			{
				// ## 第一集群：标题 第1-5章（括号可缺失）
				Name: "cluster",
				Kind: entity.BlockKindUnit,
				Pattern: regexp.MustCompile(headingLead + `(?:\*\*)?\s*第\s*(?P<num>` + numeralClass + `)\s*(?:集群|单元)\s*[:：]?\s*(?P<title>.*?)\s*[（(]?\s*第\s*(?P<start>\d+)\s*` +
					rangeSep + `\s*(?P<end>\d+)\s*章.*$`),
			},
			{
				// 第1单元 - 标题（区间写在正文或缺失）
				Name:    "bare",
				Kind:    entity.BlockKindUnit,
				Pattern: regexp.MustCompile(headingLead + `(?:\*\*)?\s*第\s*(?P<num>` + numeralClass + `)\s*(?:单元|集群)(?:(?:\s*[-—–:：]\s*|\s+)(?P<title>.*?))?\s*(?:\*\*)?\s*$`),
			},
		},
		ChapterFields: []FieldRule{
			newFieldRule(FieldRole, "本章定位", "章节定位"),
			newFieldRule(FieldPurpose, "核心作用"),
			newFieldRule(FieldSuspense, "悬念密度"),
			newFieldRule(FieldForeshadowing, "伏笔操作", "伏笔设计", "伏笔"),
			newFieldRule(FieldPlotTwist, "认知颠覆", "转折程度", "转折"),
			newFieldRule(FieldCultivation, "主角修为", "修为状态", "修为"),
			newFieldRule(FieldScene, "空间坐标", "场景地点", "场景"),
			newFieldRule(FieldSummary, "本章简述", "章节简述", "简述"),
		},
		UnitFields: []FieldRule{
			newFieldRule(FieldUnitLocation, "本单元定位", "单元定位"),
			newFieldRule(FieldUnitPurpose, "核心作用"),
			newFieldRule(FieldUnitSummary, "内容摘要", "单元摘要"),
			newFieldRule(FieldCultivationRange, "修为等级范围", "修为范围"),
			newFieldRule(FieldSpatialRange, "空间坐标范围", "空间范围"),
			newFieldRule(FieldTechniques, "推荐的跨章节写作手法", "写作手法"),
			newFieldRule(FieldChapterRange, "包含章节", "章节范围"),
		},
		CultivationSplit:  regexp.MustCompile(`\s*[|｜]\s*`),
		BoundSplit:        regexp.MustCompile(`\s*(?:[|｜→]|->|=>|~|～|至)\s*`),
		WaypointSplit:     regexp.MustCompile(`\s*(?:→|->|=>|⇒|—>|、|，|,|；|;)\s*`),
		ChapterRangeValue: regexp.MustCompile(`第?\s*(\d+)\s*` + rangeSep + `\s*(\d+)`),
		FallbackUnitWidth: fallbackUnitWidth,
	}
}

// newFieldRule 根据别名构建字段行正则
// 支持：**字段**：值 / ├── 字段：值 / 字段=值 / 字段 值 / **字段：** 值
func newFieldRule(name FieldName, aliases ...string) FieldRule {
	quoted := make([]string, 0, len(aliases))
	for _, a := range aliases {
		quoted = append(quoted, regexp.QuoteMeta(a))
	}
	pattern := `^\s*(?:[├└│┣┗]\s*[─━-]*\s*|[-•]\s+)?(?:\*\*)?\s*(?:` + strings.Join(quoted, "|") +
		`)\s*(?:\*\*)?(?:\s*[:：=]|\s)\s*(?:\*\*)?\s*(?P<value>.*?)\s*(?:\*\*)?\s*$`
	return FieldRule{
		Name:    name,
		Aliases: aliases,
		Pattern: regexp.MustCompile(pattern),
	}
}

// MatchHeader 判断一行是否为章节或单元标题；章节变体优先
func (g *Grammar) MatchHeader(line string) (HeaderMatch, bool) {
	if m, ok := g.MatchChapterHeader(line); ok {
		return m, true
	}
	return g.MatchUnitHeader(line)
}

// MatchChapterHeader 按顺序尝试章节标题变体
func (g *Grammar) MatchChapterHeader(line string) (HeaderMatch, bool) {
	return matchVariants(g.ChapterHeaders, line)
}

// MatchUnitHeader 按顺序尝试单元标题变体
func (g *Grammar) MatchUnitHeader(line string) (HeaderMatch, bool) {
	return matchVariants(g.UnitHeaders, line)
}

func matchVariants(variants []HeaderVariant, line string) (HeaderMatch, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return HeaderMatch{}, false
	}
	for _, v := range variants {
		sub := v.Pattern.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		num, ok := parseNumeral(group(v.Pattern, sub, "num"))
		if !ok {
			continue
		}
		m := HeaderMatch{
			Kind:    v.Kind,
			Variant: v.Name,
			Number:  num,
			Title:   cleanTitle(group(v.Pattern, sub, "title")),
		}
		if s, ok := parseNumeral(group(v.Pattern, sub, "start")); ok {
			m.Start = s
		}
		if e, ok := parseNumeral(group(v.Pattern, sub, "end")); ok {
			m.End = e
		}
		if m.Start > m.End {
			m.Start, m.End = 0, 0
		}
		return m, true
	}
	return HeaderMatch{}, false
}

// MatchField 在规则列表中按优先级匹配字段行，返回字段名与取值
func MatchField(rules []FieldRule, line string) (FieldName, string, bool) {
	for _, r := range rules {
		sub := r.Pattern.FindStringSubmatch(line)
		if sub == nil {
			continue
		}
		return r.Name, strings.TrimSpace(group(r.Pattern, sub, "value")), true
	}
	return "", "", false
}

func group(re *regexp.Regexp, sub []string, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(sub) {
		return ""
	}
	return sub[idx]
}

// cleanTitle 清理标题：去除残留的 * 与包裹的括号
func cleanTitle(title string) string {
	t := strings.TrimSpace(title)
	t = strings.TrimRight(t, "*")
	t = strings.TrimLeft(t, "*")
	t = strings.TrimSpace(t)
	for _, pair := range [][2]string{{"[", "]"}, {"【", "】"}} {
		if strings.HasPrefix(t, pair[0]) && strings.HasSuffix(t, pair[1]) {
			t = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t, pair[0]), pair[1]))
		}
	}
	return t
}

// rule 按字段名查找规则
func rule(rules []FieldRule, name FieldName) (FieldRule, bool) {
	for _, r := range rules {
		if r.Name == name {
			return r, true
		}
	}
	return FieldRule{}, false
}
