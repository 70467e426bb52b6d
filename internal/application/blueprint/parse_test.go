package blueprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-blueprint/internal/domain/entity"
)

const sampleDirectory = `小说《青云志》章节目录

第1单元 - 初入宗门（包含章节：1-2章）
本单元定位：开篇
核心作用：建立世界观
内容摘要：少年入宗
修为等级范围：炼气一层 → 炼气三层
空间坐标范围：青石镇 → 青云山外门
推荐的跨章节写作手法：悬念递进

第1章 - 少年
本章定位：开篇
核心作用：引出主角
悬念密度：中等
伏笔操作：埋设(青铜古镜)
认知颠覆：★☆☆☆☆
主角修为：炼气一层
空间坐标：青石镇
本章简述：少年林远在镇上捡到古镜。

**第2章 - 入山**
├── 本章定位：过渡
├── 主角修为：表面修为炼气二层 | 实际实力炼气三层
└── 本章简述：林远拜入青云山。

第2单元 - 外门风波
包含章节：3-4章
修为范围：炼气三层至炼气五层

第3章 - [试炼]
本章定位：冲突
伏笔操作：强化(青铜古镜)
主角修为：炼气四层
空间坐标：青云山外门

第4章 - 突破
主角修为：炼气五层
伏笔操作：回收(青铜古镜)`

func TestParseDocument(t *testing.T) {
	doc := NewParser(nil).ParseDocument(sampleDirectory)

	assert.Equal(t, "小说《青云志》章节目录", doc.Preamble)
	require.Len(t, doc.Units, 2)
	require.Len(t, doc.Chapters, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, doc.ChapterNumbers())

	u1 := doc.Units[0]
	assert.Equal(t, 1, u1.Number)
	assert.Equal(t, "初入宗门", u1.Title)
	assert.Equal(t, 1, u1.StartChapter)
	assert.Equal(t, 2, u1.EndChapter)
	assert.Equal(t, "开篇", u1.Location)
	assert.Equal(t, "建立世界观", u1.Purpose)
	assert.Equal(t, "少年入宗", u1.Summary)
	assert.Equal(t, "炼气一层 → 炼气三层", u1.CultivationRange)
	assert.Equal(t, []string{"青石镇", "青云山外门"}, u1.SpatialRange)
	assert.Equal(t, "悬念递进", u1.RecommendedTechniques)

	u2 := doc.Units[1]
	assert.Equal(t, "外门风波", u2.Title)
	assert.Equal(t, 3, u2.StartChapter)
	assert.Equal(t, 4, u2.EndChapter)
	assert.Equal(t, 2, u2.ChapterCount())

	c1 := doc.Chapters[0]
	assert.Equal(t, "少年", c1.Title)
	assert.Equal(t, "开篇", c1.Role)
	assert.Equal(t, "引出主角", c1.Purpose)
	assert.Equal(t, "中等", c1.SuspenseLevel)
	assert.Equal(t, "埋设(青铜古镜)", c1.Foreshadowing)
	assert.Equal(t, "★☆☆☆☆", c1.PlotTwistLevel)
	assert.Equal(t, "炼气一层", c1.SurfaceCultivation)
	assert.Equal(t, "炼气一层", c1.ActualCultivation)
	assert.Equal(t, "青石镇", c1.SceneLocation)
	assert.Equal(t, "少年林远在镇上捡到古镜。", c1.Summary)

	c2 := doc.Chapters[1]
	assert.Equal(t, "入山", c2.Title)
	assert.Equal(t, "过渡", c2.Role)
	assert.Equal(t, "炼气二层", c2.SurfaceCultivation)
	assert.Equal(t, "炼气三层", c2.ActualCultivation)
	assert.Equal(t, "林远拜入青云山。", c2.Summary)

	assert.Equal(t, "试炼", doc.Chapters[2].Title)
}

func TestParseChapter_MissingFieldsStayEmpty(t *testing.T) {
	c, ok := NewParser(nil).ParseChapter("第9章 - 空白\n这一行什么也不是")
	require.True(t, ok)
	assert.Equal(t, 9, c.Number)
	assert.Equal(t, "空白", c.Title)
	assert.Empty(t, c.Role)
	assert.Empty(t, c.Summary)
	assert.Empty(t, c.ActualCultivation)
}

func TestParseChapter_NotAChapter(t *testing.T) {
	_, ok := NewParser(nil).ParseChapter("第1单元 - 初入宗门（包含章节：1-2章）")
	assert.False(t, ok)
}

func TestParseChapter_FirstFieldOccurrenceWins(t *testing.T) {
	c, ok := NewParser(nil).ParseChapter("第1章 - 甲\n本章定位：开篇\n章节定位：重复")
	require.True(t, ok)
	assert.Equal(t, "开篇", c.Role)
}

func TestFormatChapter_RoundTrip(t *testing.T) {
	p := NewParser(nil)
	want := entity.ChapterRecord{
		Number:             12,
		Title:              "血色黎明",
		Role:               "高潮",
		Purpose:            "揭示身世",
		SuspenseLevel:      "紧张",
		Foreshadowing:      "回收(青铜古镜)",
		PlotTwistLevel:     "★★★★☆",
		SurfaceCultivation: "炼气九层",
		ActualCultivation:  "筑基初期",
		SceneLocation:      "青云山后山",
		Summary:            "林远在后山觉醒血脉。",
	}

	got, ok := p.ParseChapter(FormatChapter(want))
	require.True(t, ok)
	got.Raw = ""
	assert.Equal(t, want, got)
}

func TestFormatChapter_RoundTripSingleCultivation(t *testing.T) {
	want := entity.ChapterRecord{
		Number:             3,
		Title:              "试炼",
		SurfaceCultivation: "炼气四层",
		ActualCultivation:  "炼气四层",
	}

	got, ok := NewParser(nil).ParseChapter(FormatChapter(want))
	require.True(t, ok)
	got.Raw = ""
	assert.Equal(t, want, got)
}

func TestFormatUnit_RoundTrip(t *testing.T) {
	want := entity.UnitRecord{
		Number:                2,
		Title:                 "宗门风云",
		StartChapter:          6,
		EndChapter:            10,
		Location:              "发展",
		Purpose:               "引出反派",
		Summary:               "外门大比",
		CultivationRange:      "炼气三层 → 炼气七层",
		SpatialRange:          []string{"外门", "内门", "后山"},
		RecommendedTechniques: "多线并进",
	}

	got, ok := NewParser(nil).ParseUnit(FormatUnit(want))
	require.True(t, ok)
	got.Raw = ""
	assert.Equal(t, want, got)
}

func TestSplitBounds(t *testing.T) {
	g := DefaultGrammar()

	lower, upper := g.SplitBounds("炼气三层 → 炼气七层")
	assert.Equal(t, "炼气三层", lower)
	assert.Equal(t, "炼气七层", upper)

	lower, upper = g.SplitBounds("筑基初期至筑基后期")
	assert.Equal(t, "筑基初期", lower)
	assert.Equal(t, "筑基后期", upper)

	lower, upper = g.SplitBounds("金丹")
	assert.Equal(t, "金丹", lower)
	assert.Equal(t, "金丹", upper)
}

func TestSetActualCultivation(t *testing.T) {
	g := DefaultGrammar()
	p := NewParser(g)

	paired, ok := p.ParseChapter("第5章 - 暗藏\n主角修为：表面修为炼气三层 | 实际实力筑基后期\n本章简述：隐藏实力。")
	require.True(t, ok)

	fixed := g.SetActualCultivation(paired, "筑基初期")
	assert.Equal(t, "炼气三层", fixed.SurfaceCultivation)
	assert.Equal(t, "筑基初期", fixed.ActualCultivation)
	assert.Equal(t, "第5章 - 暗藏\n主角修为：表面修为炼气三层 | 实际实力筑基初期\n本章简述：隐藏实力。", fixed.Raw)

	single, ok := p.ParseChapter("第6章 - 直白\n主角修为：炼气九层")
	require.True(t, ok)

	fixed = g.SetActualCultivation(single, "炼气七层")
	assert.Equal(t, "炼气七层", fixed.SurfaceCultivation)
	assert.Equal(t, "炼气七层", fixed.ActualCultivation)
	assert.Equal(t, "第6章 - 直白\n主角修为：炼气七层", fixed.Raw)

	reparsed, ok := p.ParseChapter(fixed.Raw)
	require.True(t, ok)
	assert.Equal(t, "炼气七层", reparsed.ActualCultivation)
}

func TestPlaceholderChapter(t *testing.T) {
	c := NewParser(nil).GetChapter(sampleDirectory, 42)
	assert.Equal(t, 42, c.Number)
	assert.Equal(t, "第42章", c.Title)
	assert.Equal(t, "常规章节", c.Role)
	assert.Equal(t, "第42章的剧情发展", c.Summary)

	found := NewParser(nil).GetChapter(sampleDirectory, 2)
	assert.Equal(t, "入山", found.Title)
}
