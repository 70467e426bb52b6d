package validate

import (
	"regexp"
	"strings"

	"z-novel-blueprint/internal/application/blueprint"
	"z-novel-blueprint/internal/domain/entity"
)

type foreshadowOp int

const (
	opBury foreshadowOp = iota + 1
	opReinforce
	opResolve
)

var (
	foreshadowPattern = regexp.MustCompile(`(埋设|埋下|埋伏|bury|强化|加强|呼应|reinforce|回收|揭晓|揭示|resolve)\s*[（(【\[]\s*(.+?)\s*[）)】\]]`)
	itemSplitPattern  = regexp.MustCompile(`\s*[、，,；;]\s*`)

	opWords = map[string]foreshadowOp{
		"埋设": opBury, "埋下": opBury, "埋伏": opBury, "bury": opBury,
		"强化": opReinforce, "加强": opReinforce, "呼应": opReinforce, "reinforce": opReinforce,
		"回收": opResolve, "揭晓": opResolve, "揭示": opResolve, "resolve": opResolve,
	}
)

// ForeshadowReport 伏笔追踪结果
type ForeshadowReport struct {
	Items      []entity.ForeshadowItem `json:"items"`
	Unresolved []entity.ForeshadowItem `json:"unresolved"`
	Warnings   []Warning               `json:"warnings,omitempty"`
}

// TrackForeshadowing 按章节顺序扫描伏笔操作，构建埋设/强化/回收生命周期
// 对未埋设或已回收的伏笔执行强化/回收会产生警告；重复埋设未回收的伏笔同样产生警告。
func TrackForeshadowing(chapters []entity.ChapterRecord) ForeshadowReport {
	var report ForeshadowReport
	open := make(map[string]int) // name -> index in report.Items

	for _, c := range blueprint.DedupChapters(chapters) {
		for _, m := range foreshadowPattern.FindAllStringSubmatch(c.Foreshadowing, -1) {
			op := opWords[strings.ToLower(m[1])]
			for _, name := range splitItems(m[2]) {
				idx, isOpen := open[name]
				switch op {
				case opBury:
					if isOpen {
						report.Warnings = append(report.Warnings, warnf(CheckForeshadow, c.Number,
							"伏笔「%s」已于第%d章埋设且尚未回收，重复埋设", name, report.Items[idx].BuriedAt))
						continue
					}
					report.Items = append(report.Items, entity.ForeshadowItem{
						Name:     name,
						BuriedAt: c.Number,
						State:    entity.ForeshadowBuried,
					})
					open[name] = len(report.Items) - 1
				case opReinforce:
					if !isOpen {
						report.Warnings = append(report.Warnings, warnf(CheckForeshadow, c.Number,
							"强化了未埋设或已回收的伏笔「%s」", name))
						continue
					}
					report.Items[idx].ReinforcedAt = append(report.Items[idx].ReinforcedAt, c.Number)
				case opResolve:
					if !isOpen {
						report.Warnings = append(report.Warnings, warnf(CheckForeshadow, c.Number,
							"回收了未埋设或已回收的伏笔「%s」", name))
						continue
					}
					report.Items[idx].ResolvedAt = c.Number
					report.Items[idx].State = entity.ForeshadowResolved
					delete(open, name)
				}
			}
		}
	}

	for _, item := range report.Items {
		if !item.Resolved() {
			report.Unresolved = append(report.Unresolved, item)
		}
	}
	return report
}

func splitItems(s string) []string {
	var out []string
	for _, part := range itemSplitPattern.Split(s, -1) {
		part = strings.Trim(strings.TrimSpace(part), `"'“”「」『』`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
