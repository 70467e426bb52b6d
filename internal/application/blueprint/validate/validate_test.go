package validate

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/domain/entity"
)

func TestScale_Rank(t *testing.T) {
	s := DefaultScale()

	ordered := []string{
		"炼气一层",
		"炼气三层",
		"练气五层",
		"炼气九层",
		"炼气大圆满",
		"筑基门槛",
		"筑基",
		"筑基初期",
		"筑基中期",
		"筑基后期",
		"筑基巅峰",
		"金丹初期",
		"结丹中期",
		"元婴境界",
	}
	prev := 0
	for _, level := range ordered {
		r, ok := s.Rank(level)
		require.True(t, ok, level)
		assert.Greater(t, r, prev, level)
		prev = r
	}
}

func TestScale_RankFuzzyAndUnknown(t *testing.T) {
	s := DefaultScale()

	fuzzy, ok := s.Rank("铸基中期")
	require.True(t, ok)
	exact, _ := s.Rank("筑基中期")
	assert.Equal(t, exact, fuzzy)

	_, ok = s.Rank("斗者三星")
	assert.False(t, ok)
	_, ok = s.Rank("")
	assert.False(t, ok)
	_, ok = s.Rank("未设定")
	assert.False(t, ok)

	cmp, ok := s.Compare("筑基稳固", "筑基")
	require.True(t, ok)
	assert.Equal(t, 1, cmp)
}

func TestClampCultivation(t *testing.T) {
	v := NewValidator(nil, nil)
	p := blueprint.NewParser(nil)

	doc := p.ParseDocument(`第1单元 - 外门（包含章节：1-3章）
修为等级范围：炼气三层 → 炼气七层

第1章 - 低
主角修为：炼气一层

第2章 - 正常
主角修为：炼气五层

第3章 - 高
主角修为：表面修为炼气五层 | 实际实力筑基初期

第4章 - 无单元
主角修为：金丹初期`)

	fixed, warnings := v.ClampCultivation(doc.Units, doc.Chapters)
	require.Len(t, fixed, 4)
	require.Len(t, warnings, 2)

	assert.Equal(t, "炼气三层", fixed[0].ActualCultivation)
	assert.Equal(t, "炼气三层", fixed[0].SurfaceCultivation)
	assert.Contains(t, fixed[0].Raw, "主角修为：炼气三层")

	assert.Equal(t, doc.Chapters[1], fixed[1])

	assert.Equal(t, "炼气七层", fixed[2].ActualCultivation)
	assert.Equal(t, "炼气五层", fixed[2].SurfaceCultivation)
	assert.Contains(t, fixed[2].Raw, "表面修为炼气五层 | 实际实力炼气七层")

	assert.Equal(t, "金丹初期", fixed[3].ActualCultivation)

	assert.Equal(t, CheckCultivation, warnings[0].Check)
	assert.Equal(t, 1, warnings[0].Chapter)
	assert.Equal(t, 3, warnings[1].Chapter)

	// 输入不被修改
	assert.Equal(t, "炼气一层", doc.Chapters[0].ActualCultivation)
}

func TestClampCultivation_UnrecognizedBoundIsIgnored(t *testing.T) {
	var buf bytes.Buffer
	v := NewValidator(nil, nil).WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	units := []entity.UnitRecord{{Number: 1, StartChapter: 1, EndChapter: 5, CultivationRange: "未知 → 炼气七层"}}
	chapters := []entity.ChapterRecord{
		{Number: 1, ActualCultivation: "炼气一层", SurfaceCultivation: "炼气一层"},
		{Number: 2, ActualCultivation: "", SurfaceCultivation: ""},
		{Number: 3, ActualCultivation: "神秘境界", SurfaceCultivation: "神秘境界"},
	}

	fixed, warnings := v.ClampCultivation(units, chapters)
	assert.Empty(t, warnings)
	assert.Equal(t, chapters, fixed)
	assert.Contains(t, buf.String(), "unrecognized cultivation level")
	assert.Contains(t, buf.String(), "神秘境界")
}

func TestClampCultivation_UnrecognizedLevelRaisedToLowerBound(t *testing.T) {
	var buf bytes.Buffer
	v := NewValidator(nil, nil).WithLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	units := []entity.UnitRecord{{Number: 2, StartChapter: 1, EndChapter: 5, CultivationRange: "炼气一层 | 炼气三层"}}
	chapters := []entity.ChapterRecord{
		{Number: 4, ActualCultivation: "神秘境界", SurfaceCultivation: "神秘境界", Raw: "第4章 - 异变\n主角修为：神秘境界"},
	}

	fixed, warnings := v.ClampCultivation(units, chapters)
	require.Len(t, warnings, 1)
	assert.Equal(t, CheckCultivation, warnings[0].Check)
	assert.Equal(t, 4, warnings[0].Chapter)
	assert.Contains(t, warnings[0].Message, "神秘境界")
	assert.Equal(t, "炼气一层", fixed[0].ActualCultivation)
	assert.Equal(t, "炼气一层", fixed[0].SurfaceCultivation)
	assert.Equal(t, "第4章 - 异变\n主角修为：炼气一层", fixed[0].Raw)
	assert.Contains(t, buf.String(), "unrecognized cultivation level")
}

func TestCheckSpatial(t *testing.T) {
	v := NewValidator(nil, nil)
	units := []entity.UnitRecord{{Number: 1, StartChapter: 1, EndChapter: 4, SpatialRange: []string{"青石镇", "青云山外门"}}}
	chapters := []entity.ChapterRecord{
		{Number: 1, SceneLocation: "青石镇集市"},
		{Number: 2, SceneLocation: "青云山外门演武场"},
		{Number: 3, SceneLocation: "魔渊"},
		{Number: 4, SceneLocation: "山"},
		{Number: 9, SceneLocation: "魔渊"},
	}

	warnings := v.CheckSpatial(units, chapters)
	require.Len(t, warnings, 2)
	assert.Equal(t, CheckSpatial, warnings[0].Check)
	assert.Equal(t, 3, warnings[0].Chapter)
	// 场景只是路径点的一部分时不算落在路径上
	assert.Equal(t, 4, warnings[1].Chapter)
}

func TestChapterContinuity(t *testing.T) {
	report := ChapterContinuity([]int{3, 4, 4, 6, 9}, entity.NewGenerationRange(3, 7))
	assert.Equal(t, []int{5, 7}, report.Missing)
	assert.Equal(t, []int{4}, report.Duplicates)
	assert.Equal(t, []int{9}, report.OutOfRange)
	assert.False(t, report.OK())
	assert.Len(t, report.Warnings(), 4)

	assert.True(t, ChapterContinuity([]int{1, 2}, entity.NewGenerationRange(1, 2)).OK())
}

func TestCheckUnits(t *testing.T) {
	warnings := CheckUnits([]entity.UnitRecord{
		{Number: 1, StartChapter: 1, EndChapter: 5},
		{Number: 2, StartChapter: 5, EndChapter: 9},
		{Number: 3, StartChapter: 10, EndChapter: 12},
		{Number: 3, StartChapter: 13, EndChapter: 15},
		{Number: 4},
	})
	require.Len(t, warnings, 2)
	assert.Equal(t, "单元编号重复", warnings[0].Message)
	assert.Equal(t, 1, warnings[1].Unit)
	assert.Contains(t, warnings[1].Message, "第2单元")
}

func TestTrackForeshadowing(t *testing.T) {
	chapters := []entity.ChapterRecord{
		{Number: 3, Foreshadowing: "强化(青铜古镜)、埋设（神秘玉佩）"},
		{Number: 1, Foreshadowing: "埋设(青铜古镜)"},
		{Number: 5, Foreshadowing: "回收(青铜古镜)"},
		{Number: 6, Foreshadowing: "强化(青铜古镜)"},
		{Number: 7, Foreshadowing: "埋设(神秘玉佩)"},
		{Number: 8, Foreshadowing: "回收(血月之约)"},
		{Number: 9, Foreshadowing: "无特殊伏笔"},
	}

	report := TrackForeshadowing(chapters)
	require.Len(t, report.Items, 2)

	mirror := report.Items[0]
	assert.Equal(t, "青铜古镜", mirror.Name)
	assert.Equal(t, 1, mirror.BuriedAt)
	assert.Equal(t, []int{3}, mirror.ReinforcedAt)
	assert.Equal(t, 5, mirror.ResolvedAt)
	assert.True(t, mirror.Resolved())

	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "神秘玉佩", report.Unresolved[0].Name)
	assert.Equal(t, 3, report.Unresolved[0].BuriedAt)

	require.Len(t, report.Warnings, 3)
	assert.Equal(t, 6, report.Warnings[0].Chapter)
	assert.Equal(t, 7, report.Warnings[1].Chapter)
	assert.Equal(t, 8, report.Warnings[2].Chapter)
}

func TestTrackForeshadowing_MultipleItemsInOneOp(t *testing.T) {
	report := TrackForeshadowing([]entity.ChapterRecord{
		{Number: 1, Foreshadowing: "埋设(古镜、玉佩)"},
		{Number: 2, Foreshadowing: "回收（“古镜”）"},
	})
	require.Len(t, report.Items, 2)
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, "玉佩", report.Unresolved[0].Name)
	assert.Empty(t, report.Warnings)
}

func TestCheckDocument(t *testing.T) {
	v := NewValidator(nil, nil)
	doc := blueprint.NewParser(nil).ParseDocument(`第1单元 - 外门（包含章节：1-4章）
修为等级范围：炼气一层 → 炼气三层

第1章 - 入门
主角修为：炼气一层
伏笔操作：埋设(古镜)

第2章 - 试炼
主角修为：炼气二层

第2章 - 重复
主角修为：炼气二层

第4章 - 突破
主角修为：炼气六层`)

	report := v.CheckDocument(doc, entity.NewGenerationRange(1, 0))
	assert.Equal(t, entity.NewGenerationRange(1, 4), report.Range)
	assert.Equal(t, []int{3}, report.Continuity.Missing)
	assert.Equal(t, []int{2}, report.Continuity.Duplicates)
	assert.True(t, report.Changed)

	require.Len(t, report.Fixed, 3)
	assert.Equal(t, "炼气三层", report.Fixed[2].ActualCultivation)
	require.Len(t, report.Foreshadow.Unresolved, 1)

	var checks []Check
	for _, w := range report.Warnings {
		checks = append(checks, w.Check)
	}
	assert.Contains(t, checks, CheckContinuity)
	assert.Contains(t, checks, CheckCultivation)
}

func TestCheckDocument_ExplicitRange(t *testing.T) {
	v := NewValidator(nil, nil)
	doc := blueprint.NewParser(nil).ParseDocument("第1章 - 甲\n\n第2章 - 乙\n\n第9章 - 丙")

	report := v.CheckDocument(doc, entity.NewGenerationRange(1, 3))
	assert.Equal(t, []int{3}, report.Continuity.Missing)
	assert.Empty(t, report.Continuity.OutOfRange)
	assert.False(t, report.Changed)
}
