package validate

import (
	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/domain/entity"
)

// DocumentReport 对已有目录的整体检查结果
type DocumentReport struct {
	Range      entity.GenerationRange `json:"range"`
	Continuity ContinuityReport       `json:"continuity"`
	Warnings   []Warning              `json:"warnings,omitempty"`
	Foreshadow ForeshadowReport       `json:"foreshadow"`
	// Fixed 修为修正后的全部章节，与 Warnings 中的 cultivation 警告对应
	Fixed []entity.ChapterRecord `json:"-"`
	// Changed 有修正时为 true
	Changed bool `json:"changed"`
}

// CheckDocument 对目录执行全部校验；rng 为空区间时检查第 1 章到最大章节号
func (v *Validator) CheckDocument(doc blueprint.Document, rng entity.GenerationRange) DocumentReport {
	if rng.Empty() || rng.Start < 1 {
		highest := 0
		for _, n := range doc.ChapterNumbers() {
			if n > highest {
				highest = n
			}
		}
		rng = entity.NewGenerationRange(1, highest)
	}

	var inRange []int
	for _, n := range doc.ChapterNumbers() {
		if rng.Contains(n) {
			inRange = append(inRange, n)
		}
	}

	report := DocumentReport{
		Range:      rng,
		Continuity: ChapterContinuity(inRange, rng),
	}
	report.Warnings = append(report.Warnings, report.Continuity.Warnings()...)
	report.Warnings = append(report.Warnings, CheckUnits(doc.Units)...)

	chapters := blueprint.DedupChapters(doc.Chapters)
	fixed, clampWarnings := v.ClampCultivation(doc.Units, chapters)
	report.Warnings = append(report.Warnings, clampWarnings...)
	report.Warnings = append(report.Warnings, v.CheckSpatial(doc.Units, fixed)...)
	report.Fixed = fixed
	report.Changed = len(clampWarnings) > 0

	report.Foreshadow = TrackForeshadowing(fixed)
	report.Warnings = append(report.Warnings, report.Foreshadow.Warnings...)
	return report
}
