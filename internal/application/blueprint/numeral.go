package blueprint

import (
	"strconv"
	"strings"
)

var chineseDigits = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var chineseUnits = map[rune]int{
	'十': 10, '百': 100, '千': 1000,
}

// parseNumeral 解析阿拉伯数字或中文数字（万以内）
func parseNumeral(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 0
	}
	return parseChineseNumeral(s)
}

// parseChineseNumeral 解析“十二”“一百零五”“两千”这类写法
func parseChineseNumeral(s string) (int, bool) {
	total, current := 0, 0
	seen := false
	for _, r := range s {
		if d, ok := chineseDigits[r]; ok {
			current = d
			seen = true
			continue
		}
		unit, ok := chineseUnits[r]
		if !ok {
			return 0, false
		}
		if current == 0 {
			// “十二”省略了前导的“一”
			current = 1
		}
		total += current * unit
		current = 0
		seen = true
	}
	if !seen {
		return 0, false
	}
	return total + current, true
}
