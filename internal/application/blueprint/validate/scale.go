package validate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Tier 修为大境界
type Tier struct {
	Name    string
	Aliases []string
}

// Stage 境界内的阶段
type Stage struct {
	Names  []string
	Offset int
}

// Modifier 修饰词（门槛、稳固等）对排名的微调
type Modifier struct {
	Names []string
	Delta int
}

// Scale 修为等级刻度，用于比较任意两个修为描述的高低
// 排名 = (境界序号+1)*TierSpan + 境内偏移；无法识别时返回 false。
type Scale struct {
	Tiers     []Tier
	Stages    []Stage
	Modifiers []Modifier
	TierSpan  int
	LayerStep int
	BareTier  int

	layerPattern *regexp.Regexp
	stripSuffix  *strings.Replacer
}

// DefaultScale 默认修仙境界刻度
func DefaultScale() *Scale {
	return &Scale{
		Tiers: []Tier{
			{Name: "炼气", Aliases: []string{"炼气", "练气"}},
			{Name: "筑基", Aliases: []string{"筑基"}},
			{Name: "金丹", Aliases: []string{"金丹", "结丹"}},
			{Name: "元婴", Aliases: []string{"元婴"}},
			{Name: "化神", Aliases: []string{"化神"}},
			{Name: "炼虚", Aliases: []string{"炼虚", "练虚"}},
			{Name: "合体", Aliases: []string{"合体"}},
			{Name: "大乘", Aliases: []string{"大乘"}},
			{Name: "渡劫", Aliases: []string{"渡劫"}},
		},
		Stages: []Stage{
			{Names: []string{"大圆满", "圆满", "巅峰"}, Offset: 90},
			{Names: []string{"初期", "前期"}, Offset: 25},
			{Names: []string{"中期"}, Offset: 50},
			{Names: []string{"后期"}, Offset: 75},
		},
		Modifiers: []Modifier{
			{Names: []string{"门槛", "半步"}, Delta: -2},
			{Names: []string{"稳固", "巩固"}, Delta: 1},
		},
		TierSpan:     100,
		LayerStep:    5,
		BareTier:     1,
		layerPattern: regexp.MustCompile(`(\d+|[一二三四五六七八九十]+)\s*[层重]`),
		stripSuffix:  strings.NewReplacer("境界", "", "境", "", " ", "", "　", ""),
	}
}

// Rank 计算修为排名
func (s *Scale) Rank(level string) (int, bool) {
	text := s.stripSuffix.Replace(strings.TrimSpace(level))
	if text == "" {
		return 0, false
	}
	tier, ok := s.findTier(text)
	if !ok {
		return 0, false
	}

	offset := s.BareTier
	if m := s.layerPattern.FindStringSubmatch(text); m != nil {
		if n, ok := layerNumber(m[1]); ok {
			offset = n * s.LayerStep
			if offset >= s.TierSpan {
				offset = s.TierSpan - s.LayerStep
			}
		}
	} else {
		for _, st := range s.Stages {
			if containsAny(text, st.Names) {
				offset = st.Offset
				break
			}
		}
	}
	for _, m := range s.Modifiers {
		if containsAny(text, m.Names) {
			offset += m.Delta
		}
	}
	return (tier+1)*s.TierSpan + offset, true
}

// Compare 比较两个修为描述；任一无法识别时 ok 为 false
func (s *Scale) Compare(a, b string) (cmp int, ok bool) {
	ra, oka := s.Rank(a)
	rb, okb := s.Rank(b)
	if !oka || !okb {
		return 0, false
	}
	switch {
	case ra < rb:
		return -1, true
	case ra > rb:
		return 1, true
	default:
		return 0, true
	}
}

// findTier 先精确匹配别名（取最早出现者），再容忍首字错写（如“练基”），
// 容错匹配要求文本中同时出现阶段或层数描述。
func (s *Scale) findTier(text string) (int, bool) {
	best, bestPos := -1, len(text)+1
	for i, t := range s.Tiers {
		for _, alias := range t.Aliases {
			if pos := strings.Index(text, alias); pos >= 0 && pos < bestPos {
				best, bestPos = i, pos
			}
		}
	}
	if best >= 0 {
		return best, true
	}
	if !s.hasStageMarker(text) {
		return 0, false
	}
	runes := []rune(text)
	for i, t := range s.Tiers {
		for _, alias := range t.Aliases {
			if fuzzyContains(runes, []rune(alias)) {
				return i, true
			}
		}
	}
	return 0, false
}

func (s *Scale) hasStageMarker(text string) bool {
	if s.layerPattern.MatchString(text) {
		return true
	}
	for _, st := range s.Stages {
		if containsAny(text, st.Names) {
			return true
		}
	}
	return false
}

// fuzzyContains 只允许首字不同
func fuzzyContains(text, alias []rune) bool {
	if len(alias) < 2 || len(text) < len(alias) {
		return false
	}
	for i := 0; i+len(alias) <= len(text); i++ {
		if string(text[i+1:i+len(alias)]) == string(alias[1:]) {
			return true
		}
	}
	return false
}

func containsAny(text string, names []string) bool {
	for _, n := range names {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

var layerDigits = map[rune]int{'一': 1, '二': 2, '三': 3, '四': 4, '五': 5, '六': 6, '七': 7, '八': 8, '九': 9}

func layerNumber(s string) (int, bool) {
	n := 0
	if s[0] >= '0' && s[0] <= '9' {
		for _, r := range s {
			n = n*10 + int(r-'0')
		}
		return n, true
	}
	if utf8.RuneCountInString(s) == 1 {
		if s == "十" {
			return 10, true
		}
		d, ok := layerDigits[[]rune(s)[0]]
		return d, ok
	}
	// 十一 ~ 九十九
	runes := []rune(s)
	tens, units := 0, 0
	switch {
	case runes[0] == '十':
		tens = 1
		units = layerDigits[runes[len(runes)-1]]
	case len(runes) >= 2 && runes[1] == '十':
		tens = layerDigits[runes[0]]
		if len(runes) == 3 {
			units = layerDigits[runes[2]]
		}
	default:
		return 0, false
	}
	return tens*10 + units, true
}
