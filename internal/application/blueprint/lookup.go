package blueprint

import (
	"fmt"

	"z-novel-blueprint/internal/domain/entity"
)

// FindChapter 在文本中查找章节（先出现者胜出）
func (p *Parser) FindChapter(text string, n int) (entity.ChapterRecord, bool) {
	for _, b := range p.grammar.Segment(text) {
		if b.Kind != entity.BlockKindChapter {
			continue
		}
		c, ok := p.ParseChapter(b.Raw)
		if ok && c.Number == n {
			return c, true
		}
	}
	return entity.ChapterRecord{}, false
}

// FindUnitForChapter 查找包含章节 n 的单元
// 优先使用解析出的区间（重叠时取编号最小者）；全部区间都无法判定时按估算区间查找。
func (p *Parser) FindUnitForChapter(text string, n int) (entity.UnitRecord, bool) {
	units := DedupUnits(p.ParseDocument(text).Units)
	return p.grammar.UnitForChapter(units, n)
}

// UnitForChapter 在已解析的单元中查找包含章节 n 的单元
func (g *Grammar) UnitForChapter(units []entity.UnitRecord, n int) (entity.UnitRecord, bool) {
	units = DedupUnits(units)
	for _, u := range units {
		if u.Contains(n) {
			return u, true
		}
	}
	for _, u := range units {
		if u.HasRange() {
			continue
		}
		start, end := g.EffectiveRange(units, u)
		if start <= n && n <= end {
			return u, true
		}
	}
	return entity.UnitRecord{}, false
}

// GetChapter 查找章节，不存在时返回占位记录
func (p *Parser) GetChapter(text string, n int) entity.ChapterRecord {
	if c, ok := p.FindChapter(text, n); ok {
		return c
	}
	return PlaceholderChapter(n)
}

// GetUnitForChapter 查找单元，不存在时返回 false
func (p *Parser) GetUnitForChapter(text string, n int) (entity.UnitRecord, bool) {
	return p.FindUnitForChapter(text, n)
}

// PlaceholderChapter 章节缺失时供下游使用的默认记录
func PlaceholderChapter(n int) entity.ChapterRecord {
	return entity.ChapterRecord{
		Number:             n,
		Title:              fmt.Sprintf("第%d章", n),
		Role:               "常规章节",
		Purpose:            "内容推进",
		SuspenseLevel:      "中等",
		Foreshadowing:      "无特殊伏笔",
		PlotTwistLevel:     "★☆☆☆☆",
		SurfaceCultivation: "未设定",
		ActualCultivation:  "未设定",
		SceneLocation:      "未设定",
		Summary:            fmt.Sprintf("第%d章的剧情发展", n),
	}
}
