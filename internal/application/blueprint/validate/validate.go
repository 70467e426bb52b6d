package validate

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/pkg/logger"
)

// Validator 依赖语法（单元查找、范围拆分）与修为刻度的校验器
type Validator struct {
	grammar *blueprint.Grammar
	scale   *Scale
	log     *slog.Logger
}

// NewValidator 创建校验器，参数为空时使用默认值
func NewValidator(grammar *blueprint.Grammar, scale *Scale) *Validator {
	if grammar == nil {
		grammar = blueprint.DefaultGrammar()
	}
	if scale == nil {
		scale = DefaultScale()
	}
	return &Validator{grammar: grammar, scale: scale}
}

// WithLogger 指定日志器，默认使用全局日志器
func (v *Validator) WithLogger(l *slog.Logger) *Validator {
	v.log = l
	return v
}

func (v *Validator) logger() *slog.Logger {
	if v.log != nil {
		return v.log
	}
	return logger.Default()
}

// Scale 返回修为刻度
func (v *Validator) Scale() *Scale {
	return v.scale
}

// ClampCultivation 将章节实际修为限制在所属单元的修为范围内
// 实际修为为空时跳过；无法识别的实际修为按最低处理，会被提升到下限。无法识别的范围端点不参与限制。
func (v *Validator) ClampCultivation(units []entity.UnitRecord, chapters []entity.ChapterRecord) ([]entity.ChapterRecord, []Warning) {
	out := make([]entity.ChapterRecord, len(chapters))
	copy(out, chapters)

	var warnings []Warning
	for i, c := range out {
		if strings.TrimSpace(c.ActualCultivation) == "" {
			continue
		}
		u, ok := v.grammar.UnitForChapter(units, c.Number)
		if !ok || strings.TrimSpace(u.CultivationRange) == "" {
			continue
		}
		actual, known := v.scale.Rank(c.ActualCultivation)
		if !known {
			v.logger().Warn("unrecognized cultivation level", "chapter", c.Number, "level", c.ActualCultivation)
		}

		lower, upper := v.grammar.SplitBounds(u.CultivationRange)
		for _, bound := range []string{lower, upper} {
			if _, ok := v.scale.Rank(bound); !ok && strings.TrimSpace(bound) != "" {
				v.logger().Debug("unrecognized cultivation bound", "unit", u.Number, "bound", bound)
			}
		}
		if lr, ok := v.scale.Rank(lower); ok && actual < lr {
			reason := "低于"
			if !known {
				reason = "无法识别，按最低处理，低于"
			}
			warnings = append(warnings, warnf(CheckCultivation, c.Number,
				"实际修为 %s %s第%d单元下限 %s，已修正", c.ActualCultivation, reason, u.Number, lower))
			out[i] = v.grammar.SetActualCultivation(c, lower)
			continue
		}
		if ur, ok := v.scale.Rank(upper); ok && actual > ur {
			warnings = append(warnings, warnf(CheckCultivation, c.Number,
				"实际修为 %s 超出第%d单元上限 %s，已修正", c.ActualCultivation, u.Number, upper))
			out[i] = v.grammar.SetActualCultivation(c, upper)
		}
	}
	return out, warnings
}

// CheckSpatial 检查章节场景是否落在所属单元的空间路径上（只报告不修改）
func (v *Validator) CheckSpatial(units []entity.UnitRecord, chapters []entity.ChapterRecord) []Warning {
	var warnings []Warning
	for _, c := range chapters {
		scene := strings.TrimSpace(c.SceneLocation)
		if scene == "" {
			continue
		}
		u, ok := v.grammar.UnitForChapter(units, c.Number)
		if !ok || len(u.SpatialRange) == 0 {
			continue
		}
		if onPath(scene, u.SpatialRange) {
			continue
		}
		warnings = append(warnings, warnf(CheckSpatial, c.Number,
			"场景 %s 不在第%d单元空间路径 %s 中", scene, u.Number, strings.Join(u.SpatialRange, " → ")))
	}
	return warnings
}

func onPath(scene string, waypoints []string) bool {
	for _, w := range waypoints {
		if w == "" {
			continue
		}
		if strings.Contains(scene, w) {
			return true
		}
	}
	return false
}

// ContinuityReport 章节连续性检查结果
type ContinuityReport struct {
	Missing    []int `json:"missing,omitempty"`
	Duplicates []int `json:"duplicates,omitempty"`
	OutOfRange []int `json:"out_of_range,omitempty"`
}

// OK 没有任何问题
func (r ContinuityReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicates) == 0 && len(r.OutOfRange) == 0
}

// Warnings 转换为警告列表
func (r ContinuityReport) Warnings() []Warning {
	var warnings []Warning
	for _, n := range r.Missing {
		warnings = append(warnings, warnf(CheckContinuity, n, "章节缺失"))
	}
	for _, n := range r.Duplicates {
		warnings = append(warnings, warnf(CheckContinuity, n, "章节重复"))
	}
	for _, n := range r.OutOfRange {
		warnings = append(warnings, warnf(CheckContinuity, n, "章节超出请求区间"))
	}
	return warnings
}

// ChapterContinuity 检查解析出的章节号（去重前）相对期望区间的缺失、重复与越界
func ChapterContinuity(numbers []int, rng entity.GenerationRange) ContinuityReport {
	var report ContinuityReport
	counts := make(map[int]int, len(numbers))
	for _, n := range numbers {
		counts[n]++
	}
	for n, c := range counts {
		if c > 1 {
			report.Duplicates = append(report.Duplicates, n)
		}
		if !rng.Contains(n) {
			report.OutOfRange = append(report.OutOfRange, n)
		}
	}
	for n := rng.Start; n <= rng.End; n++ {
		if counts[n] == 0 {
			report.Missing = append(report.Missing, n)
		}
	}
	sort.Ints(report.Duplicates)
	sort.Ints(report.OutOfRange)
	return report
}

// CheckUnits 检查单元区间重叠与编号重复
func CheckUnits(units []entity.UnitRecord) []Warning {
	var warnings []Warning
	seen := make(map[int]bool, len(units))
	for _, u := range units {
		if seen[u.Number] {
			warnings = append(warnings, Warning{Check: CheckUnitOverlap, Unit: u.Number, Message: "单元编号重复"})
		}
		seen[u.Number] = true
	}

	ranged := make([]entity.UnitRecord, 0, len(units))
	for _, u := range blueprint.DedupUnits(units) {
		if u.HasRange() {
			ranged = append(ranged, u)
		}
	}
	for i := 0; i < len(ranged); i++ {
		for j := i + 1; j < len(ranged); j++ {
			a, b := ranged[i], ranged[j]
			if !a.Overlaps(b) {
				continue
			}
			warnings = append(warnings, Warning{
				Check: CheckUnitOverlap,
				Unit:  a.Number,
				Message: fmt.Sprintf("与第%d单元章节区间重叠（%d-%d / %d-%d）",
					b.Number, a.StartChapter, a.EndChapter, b.StartChapter, b.EndChapter),
			})
		}
	}
	return warnings
}
