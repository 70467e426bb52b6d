package blueprint

import (
	"sort"

	"z-novel-blueprint/internal/domain/entity"
)

// Assemble 按章节号排序并插入单元块
// 章节号重复时先出现者胜出；单元块放在其起始章节之前，没有对应章节的单元放在末尾。
func (g *Grammar) Assemble(units []entity.UnitRecord, chapters []entity.ChapterRecord) []entity.Block {
	chapters = DedupChapters(chapters)
	ordered := g.orderUnits(units)

	blocks := make([]entity.Block, 0, len(chapters)+len(ordered))
	next := 0
	for _, c := range chapters {
		for next < len(ordered) && ordered[next].start <= c.Number {
			blocks = append(blocks, entity.Block{Kind: entity.BlockKindUnit, Raw: UnitText(ordered[next].unit)})
			next++
		}
		blocks = append(blocks, entity.Block{Kind: entity.BlockKindChapter, Raw: ChapterText(c)})
	}
	for ; next < len(ordered); next++ {
		blocks = append(blocks, entity.Block{Kind: entity.BlockKindUnit, Raw: UnitText(ordered[next].unit)})
	}
	return blocks
}

// RenderDocument 组装并渲染文档
func (g *Grammar) RenderDocument(doc Document) string {
	blocks := g.Assemble(doc.Units, doc.Chapters)
	if doc.Preamble != "" {
		blocks = append([]entity.Block{{Kind: entity.BlockKindFragment, Raw: doc.Preamble}}, blocks...)
	}
	return Render(blocks)
}

// DedupChapters 去重（先出现者胜出）并按章节号升序排序
func DedupChapters(chapters []entity.ChapterRecord) []entity.ChapterRecord {
	seen := make(map[int]struct{}, len(chapters))
	out := make([]entity.ChapterRecord, 0, len(chapters))
	for _, c := range chapters {
		if _, ok := seen[c.Number]; ok {
			continue
		}
		seen[c.Number] = struct{}{}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// DedupUnits 去重（先出现者胜出）并按单元编号排序
func DedupUnits(units []entity.UnitRecord) []entity.UnitRecord {
	seen := make(map[int]struct{}, len(units))
	out := make([]entity.UnitRecord, 0, len(units))
	for _, u := range units {
		if _, ok := seen[u.Number]; ok {
			continue
		}
		seen[u.Number] = struct{}{}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

type placedUnit struct {
	unit  entity.UnitRecord
	start int
}

// orderUnits 按（有效起始章节，单元编号）排序
func (g *Grammar) orderUnits(units []entity.UnitRecord) []placedUnit {
	units = DedupUnits(units)
	placed := make([]placedUnit, 0, len(units))
	for _, u := range units {
		start, _ := g.EffectiveRange(units, u)
		placed = append(placed, placedUnit{unit: u, start: start})
	}
	sort.SliceStable(placed, func(i, j int) bool {
		if placed[i].start != placed[j].start {
			return placed[i].start < placed[j].start
		}
		return placed[i].unit.Number < placed[j].unit.Number
	})
	return placed
}

// EffectiveRange 单元的有效章节区间；区间缺失时按 FallbackUnitWidth 估算
// 估算以编号更小且区间完整的最近单元为锚点，没有锚点时从第 1 章起算。
func (g *Grammar) EffectiveRange(units []entity.UnitRecord, u entity.UnitRecord) (int, int) {
	if u.HasRange() {
		return u.StartChapter, u.EndChapter
	}
	width := g.FallbackUnitWidth
	var anchor *entity.UnitRecord
	for i := range units {
		cand := units[i]
		if !cand.HasRange() || cand.Number >= u.Number {
			continue
		}
		if anchor == nil || cand.Number > anchor.Number {
			anchor = &units[i]
		}
	}
	var start int
	if anchor != nil {
		start = anchor.EndChapter + 1 + (u.Number-anchor.Number-1)*width
	} else {
		start = (u.Number-1)*width + 1
	}
	if start < 1 {
		start = 1
	}
	return start, start + width - 1
}

// Partition 相对生成区间划分的现有章节
type Partition struct {
	Range   entity.GenerationRange
	Before  []entity.ChapterRecord
	InRange map[int]entity.ChapterRecord
	After   []entity.ChapterRecord
}

// PartitionChapters 将现有章节划分为区间前、区间内、区间后三部分
// 区间内按章节号建索引，重复章节号先出现者胜出。
func PartitionChapters(chapters []entity.ChapterRecord, rng entity.GenerationRange) *Partition {
	p := &Partition{Range: rng, InRange: make(map[int]entity.ChapterRecord)}
	for _, c := range DedupChapters(chapters) {
		switch {
		case rng.Contains(c.Number):
			p.InRange[c.Number] = c
		case c.Number < rng.Start:
			p.Before = append(p.Before, c)
		default:
			p.After = append(p.After, c)
		}
	}
	return p
}

// Chapters 按章节号升序返回全部章节
func (p *Partition) Chapters() []entity.ChapterRecord {
	out := make([]entity.ChapterRecord, 0, len(p.Before)+len(p.InRange)+len(p.After))
	out = append(out, p.Before...)
	nums := make([]int, 0, len(p.InRange))
	for n := range p.InRange {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for _, n := range nums {
		out = append(out, p.InRange[n])
	}
	out = append(out, p.After...)
	return out
}

// Merge 用新内容替换区间内的章节与单元
// 区间为空时返回原文本，保证字节不变。replaceUnits 为 true 时，与区间相交的现有单元被 units 替换，
// 否则区间内的单元按编号覆盖。区间外的章节与单元原样保留。
func (g *Grammar) Merge(existing string, rng entity.GenerationRange, units []entity.UnitRecord, chapters []entity.ChapterRecord, replaceUnits bool) string {
	if rng.Empty() {
		return existing
	}
	parser := NewParser(g)
	doc := parser.ParseDocument(existing)

	part := PartitionChapters(doc.Chapters, rng)
	for _, c := range DedupChapters(chapters) {
		if rng.Contains(c.Number) {
			part.InRange[c.Number] = c
		}
	}

	return g.RenderDocument(Document{
		Preamble: doc.Preamble,
		Units:    g.MergeUnits(doc.Units, units, rng, replaceUnits),
		Chapters: part.Chapters(),
	})
}

// MergeText 将一段生成结果文本合并进现有目录（仅区间内的章节生效）
func (g *Grammar) MergeText(existing, generated string, rng entity.GenerationRange) string {
	if rng.Empty() {
		return existing
	}
	gen := NewParser(g).ParseDocument(CleanResponse(generated))
	return g.Merge(existing, rng, gen.Units, gen.Chapters, false)
}

// MergeUnits 合并单元列表
// 只有与区间相交的现有单元可被替换；replaceIntersecting 为 false 时仅替换编号相同者。
// 区间外的单元一律保留，新单元编号与其冲突时顺延到当前最大编号之后。
func (g *Grammar) MergeUnits(existing, incoming []entity.UnitRecord, rng entity.GenerationRange, replaceIntersecting bool) []entity.UnitRecord {
	if len(incoming) == 0 && !replaceIntersecting {
		return existing
	}
	replaced := make(map[int]struct{}, len(incoming))
	for _, u := range incoming {
		replaced[u.Number] = struct{}{}
	}
	out := make([]entity.UnitRecord, 0, len(existing)+len(incoming))
	taken := make(map[int]struct{}, len(existing))
	maxNum := 0
	for _, u := range existing {
		inside := !u.HasRange() || rng.Intersects(u)
		if inside {
			if replaceIntersecting && u.HasRange() {
				continue
			}
			if _, ok := replaced[u.Number]; ok {
				continue
			}
		}
		out = append(out, u)
		taken[u.Number] = struct{}{}
		maxNum = max(maxNum, u.Number)
	}
	for _, u := range incoming {
		maxNum = max(maxNum, u.Number)
	}
	for _, u := range incoming {
		if _, ok := taken[u.Number]; ok {
			maxNum++
			u = g.SetUnitNumber(u, maxNum)
		}
		taken[u.Number] = struct{}{}
		out = append(out, u)
	}
	return out
}

// ExistingInRange 返回区间内已存在的章节号（升序去重）
func ExistingInRange(doc Document, rng entity.GenerationRange) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, c := range doc.Chapters {
		if !rng.Contains(c.Number) {
			continue
		}
		if _, ok := seen[c.Number]; ok {
			continue
		}
		seen[c.Number] = struct{}{}
		out = append(out, c.Number)
	}
	sort.Ints(out)
	return out
}

// RemoveRanges 删除若干区间内的章节；完全落在删除区间内的单元一并删除
func (g *Grammar) RemoveRanges(text string, ranges ...entity.GenerationRange) string {
	if len(ranges) == 0 {
		return text
	}
	inAny := func(n int) bool {
		for _, r := range ranges {
			if r.Contains(n) {
				return true
			}
		}
		return false
	}
	doc := NewParser(g).ParseDocument(text)

	var chapters []entity.ChapterRecord
	for _, c := range doc.Chapters {
		if !inAny(c.Number) {
			chapters = append(chapters, c)
		}
	}
	var units []entity.UnitRecord
	for _, u := range doc.Units {
		if u.HasRange() && coveredBy(u, inAny) {
			continue
		}
		units = append(units, u)
	}
	return g.RenderDocument(Document{Preamble: doc.Preamble, Units: units, Chapters: chapters})
}

func coveredBy(u entity.UnitRecord, in func(int) bool) bool {
	for n := u.StartChapter; n <= u.EndChapter; n++ {
		if !in(n) {
			return false
		}
	}
	return true
}

// Impact 区间生成对现有文档的影响
type Impact struct {
	// Duplicates 区间内已存在的章节号
	Duplicates []int `json:"duplicates"`
	// Missing 区间内尚不存在的章节号
	Missing []int `json:"missing"`
	// AffectedUnits 与区间相交的单元
	AffectedUnits []entity.UnitRecord `json:"affected_units"`
	// Covered 区间是否被现有单元完整覆盖
	Covered bool `json:"covered"`
	// Expanded 扩展到相交单元完整跨度后的区间
	Expanded entity.GenerationRange `json:"expanded"`
}

// AnalyzeImpact 分析生成区间的影响
func AnalyzeImpact(doc Document, rng entity.GenerationRange) Impact {
	imp := Impact{Expanded: rng}
	if rng.Empty() {
		return imp
	}
	imp.Duplicates = ExistingInRange(doc, rng)
	existing := make(map[int]struct{}, len(imp.Duplicates))
	for _, n := range imp.Duplicates {
		existing[n] = struct{}{}
	}
	for n := rng.Start; n <= rng.End; n++ {
		if _, ok := existing[n]; !ok {
			imp.Missing = append(imp.Missing, n)
		}
	}

	covered := make(map[int]struct{})
	for _, u := range DedupUnits(doc.Units) {
		if !rng.Intersects(u) {
			continue
		}
		imp.AffectedUnits = append(imp.AffectedUnits, u)
		if u.StartChapter < imp.Expanded.Start {
			imp.Expanded.Start = u.StartChapter
		}
		if u.EndChapter > imp.Expanded.End {
			imp.Expanded.End = u.EndChapter
		}
		for n := u.StartChapter; n <= u.EndChapter; n++ {
			covered[n] = struct{}{}
		}
	}
	imp.Covered = len(imp.AffectedUnits) > 0
	for n := rng.Start; n <= rng.End && imp.Covered; n++ {
		if _, ok := covered[n]; !ok {
			imp.Covered = false
		}
	}
	return imp
}
