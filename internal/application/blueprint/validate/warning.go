// Package validate 章节目录一致性校验：修为区间、空间路径、章节连续性、伏笔追踪与单元重叠。
//
// 校验器都是纯函数，只返回警告与修正后的记录，不做任何 I/O。
package validate

import "fmt"

// Check 校验类别
type Check string

const (
	CheckCultivation Check = "cultivation"
	CheckSpatial     Check = "spatial"
	CheckContinuity  Check = "continuity"
	CheckForeshadow  Check = "foreshadow"
	CheckUnitOverlap Check = "unit_overlap"
)

// Warning 校验警告
type Warning struct {
	Check   Check  `json:"check"`
	Chapter int    `json:"chapter,omitempty"`
	Unit    int    `json:"unit,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Chapter > 0:
		return fmt.Sprintf("[%s] 第%d章: %s", w.Check, w.Chapter, w.Message)
	case w.Unit > 0:
		return fmt.Sprintf("[%s] 第%d单元: %s", w.Check, w.Unit, w.Message)
	default:
		return fmt.Sprintf("[%s] %s", w.Check, w.Message)
	}
}

func warnf(check Check, chapter int, format string, args ...any) Warning {
	return Warning{Check: check, Chapter: chapter, Message: fmt.Sprintf(format, args...)}
}
