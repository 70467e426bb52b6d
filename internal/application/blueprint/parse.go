package blueprint

import (
	"strings"

	"z-novel-blueprint/internal/domain/entity"
)

var (
	surfacePrefixes = []string{"表面修为", "表面境界", "表面"}
	actualPrefixes  = []string{"实际实力", "实际修为", "真实实力", "实际"}
)

// Parser 目录解析器
type Parser struct {
	grammar *Grammar
}

// NewParser 创建解析器，grammar 为空时使用默认语法
func NewParser(grammar *Grammar) *Parser {
	if grammar == nil {
		grammar = DefaultGrammar()
	}
	return &Parser{grammar: grammar}
}

// Grammar 返回解析器使用的语法
func (p *Parser) Grammar() *Grammar {
	return p.grammar
}

// Document 解析后的目录文档
// Chapters 保留文本顺序且可能含重复章节号，去重在 Assemble 时进行（先出现者胜出）。
type Document struct {
	// Preamble 第一个标题之前的文本
	Preamble string
	Units    []entity.UnitRecord
	Chapters []entity.ChapterRecord
}

// ChapterNumbers 按文本顺序返回所有章节号（含重复）
func (d Document) ChapterNumbers() []int {
	nums := make([]int, 0, len(d.Chapters))
	for _, c := range d.Chapters {
		nums = append(nums, c.Number)
	}
	return nums
}

// ParseDocument 解析整个目录文本；无法识别的块被跳过
func (p *Parser) ParseDocument(text string) Document {
	var doc Document
	for _, b := range p.grammar.Segment(text) {
		switch b.Kind {
		case entity.BlockKindFragment:
			doc.Preamble = b.Raw
		case entity.BlockKindChapter:
			if c, ok := p.ParseChapter(b.Raw); ok {
				doc.Chapters = append(doc.Chapters, c)
			}
		case entity.BlockKindUnit:
			if u, ok := p.ParseUnit(b.Raw); ok {
				doc.Units = append(doc.Units, u)
			}
		}
	}
	return doc
}

// ParseChapter 解析章节块；首行不是章节标题时返回 false
func (p *Parser) ParseChapter(raw string) (entity.ChapterRecord, bool) {
	raw = strings.TrimSpace(normalizeNewlines(raw))
	lines := strings.Split(raw, "\n")
	header, ok := p.grammar.MatchChapterHeader(lines[0])
	if !ok {
		return entity.ChapterRecord{}, false
	}

	rec := entity.ChapterRecord{
		Number: header.Number,
		Title:  header.Title,
		Raw:    raw,
	}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := MatchField(p.grammar.ChapterFields, line)
		if !ok {
			continue
		}
		switch name {
		case FieldRole:
			setOnce(&rec.Role, value)
		case FieldPurpose:
			setOnce(&rec.Purpose, value)
		case FieldSuspense:
			setOnce(&rec.SuspenseLevel, value)
		case FieldForeshadowing:
			setOnce(&rec.Foreshadowing, value)
		case FieldPlotTwist:
			setOnce(&rec.PlotTwistLevel, value)
		case FieldCultivation:
			if rec.ActualCultivation == "" && rec.SurfaceCultivation == "" {
				rec.SurfaceCultivation, rec.ActualCultivation = p.splitCultivation(value)
			}
		case FieldScene:
			setOnce(&rec.SceneLocation, value)
		case FieldSummary:
			setOnce(&rec.Summary, value)
		}
	}
	return rec, true
}

// ParseUnit 解析单元块；区间优先取标题行，其次取正文中的“包含章节”字段
func (p *Parser) ParseUnit(raw string) (entity.UnitRecord, bool) {
	raw = strings.TrimSpace(normalizeNewlines(raw))
	lines := strings.Split(raw, "\n")
	header, ok := p.grammar.MatchUnitHeader(lines[0])
	if !ok {
		return entity.UnitRecord{}, false
	}

	rec := entity.UnitRecord{
		Number:       header.Number,
		Title:        header.Title,
		StartChapter: header.Start,
		EndChapter:   header.End,
		Raw:          raw,
	}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, ok := MatchField(p.grammar.UnitFields, line)
		if !ok {
			continue
		}
		switch name {
		case FieldUnitLocation:
			setOnce(&rec.Location, value)
		case FieldUnitPurpose:
			setOnce(&rec.Purpose, value)
		case FieldUnitSummary:
			setOnce(&rec.Summary, value)
		case FieldCultivationRange:
			setOnce(&rec.CultivationRange, value)
		case FieldSpatialRange:
			if len(rec.SpatialRange) == 0 {
				rec.SpatialRange = p.splitWaypoints(value)
			}
		case FieldTechniques:
			setOnce(&rec.RecommendedTechniques, value)
		case FieldChapterRange:
			if !rec.HasRange() {
				rec.StartChapter, rec.EndChapter = p.chapterRange(value)
			}
		}
	}
	return rec, true
}

// splitCultivation 拆分“表面修为X | 实际实力Y”；没有分隔符时表面与实际相同
func (p *Parser) splitCultivation(value string) (surface, actual string) {
	parts := p.grammar.CultivationSplit.Split(value, 2)
	if len(parts) < 2 {
		v := stripLabel(value, nil)
		return v, v
	}
	return stripLabel(parts[0], surfacePrefixes), stripLabel(parts[1], actualPrefixes)
}

// SplitBounds 拆分单元修为范围为起止两端；无法拆分时两端均为原值
func (g *Grammar) SplitBounds(value string) (lower, upper string) {
	value = strings.TrimSpace(value)
	parts := g.BoundSplit.Split(value, 2)
	if len(parts) < 2 {
		return value, value
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func (p *Parser) splitWaypoints(value string) []string {
	var out []string
	for _, w := range p.grammar.WaypointSplit.Split(value, -1) {
		w = strings.TrimSpace(w)
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func (p *Parser) chapterRange(value string) (int, int) {
	sub := p.grammar.ChapterRangeValue.FindStringSubmatch(value)
	if sub == nil {
		return 0, 0
	}
	start, ok1 := parseNumeral(sub[1])
	end, ok2 := parseNumeral(sub[2])
	if !ok1 || !ok2 || start <= 0 || start > end {
		return 0, 0
	}
	return start, end
}

// stripLabel 去除“表面修为：”一类的标签前缀
func stripLabel(s string, prefixes []string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimLeft(s, "：: ")
	return strings.TrimSpace(s)
}

func setOnce(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
