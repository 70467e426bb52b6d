// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockKind 目录块类型
type BlockKind string

const (
	BlockKindUnit     BlockKind = "unit"
	BlockKindChapter  BlockKind = "chapter"
	BlockKindFragment BlockKind = "fragment"
)

// Block 目录文本中的一个块（单元/章节/无法识别的片段）
// Raw 为从标题行开始、到下一个标题行之前的原始文本（已去除首尾空白）。
type Block struct {
	Kind BlockKind `json:"kind"`
	Raw  string    `json:"raw"`
}

// ChapterRecord 章节蓝图记录
type ChapterRecord struct {
	Number             int    `json:"chapter_number"`
	Title              string `json:"chapter_title"`
	Role               string `json:"chapter_role"`
	Purpose            string `json:"chapter_purpose"`
	SuspenseLevel      string `json:"suspense_level"`
	Foreshadowing      string `json:"foreshadowing"`
	PlotTwistLevel     string `json:"plot_twist_level"`
	SurfaceCultivation string `json:"surface_cultivation"`
	ActualCultivation  string `json:"actual_cultivation"`
	SceneLocation      string `json:"scene_location"`
	Summary            string `json:"chapter_summary"`

	// Raw 章节原始文本；合并时原样保留，保证未触及的章节字节不变
	Raw string `json:"-"`
}

// UnitRecord 单元（跨越连续章节区间的叙事弧）记录
type UnitRecord struct {
	Number                int      `json:"unit_number"`
	Title                 string   `json:"unit_title"`
	StartChapter          int      `json:"start_chapter"`
	EndChapter            int      `json:"end_chapter"`
	Location              string   `json:"unit_location"`
	Purpose               string   `json:"unit_purpose"`
	Summary               string   `json:"unit_summary"`
	CultivationRange      string   `json:"cultivation_range"`
	SpatialRange          []string `json:"spatial_range"`
	RecommendedTechniques string   `json:"recommended_techniques"`

	Raw string `json:"-"`
}

// HasRange 单元章节区间是否可用
func (u UnitRecord) HasRange() bool {
	return u.StartChapter > 0 && u.EndChapter >= u.StartChapter
}

// ChapterCount 派生的章节数量，仅供展示；权威值为 StartChapter/EndChapter
func (u UnitRecord) ChapterCount() int {
	if !u.HasRange() {
		return 0
	}
	return u.EndChapter - u.StartChapter + 1
}

// Contains 单元是否包含指定章节
func (u UnitRecord) Contains(chapter int) bool {
	return u.HasRange() && u.StartChapter <= chapter && chapter <= u.EndChapter
}

// Overlaps 两个单元区间是否重叠
func (u UnitRecord) Overlaps(other UnitRecord) bool {
	if !u.HasRange() || !other.HasRange() {
		return false
	}
	return u.StartChapter <= other.EndChapter && other.StartChapter <= u.EndChapter
}

// GenerationRange 一次（重新）生成请求的章节区间，闭区间
type GenerationRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewGenerationRange 创建生成区间
func NewGenerationRange(start, end int) GenerationRange {
	return GenerationRange{Start: start, End: end}
}

// Empty start > end 表示空区间（无操作）
func (r GenerationRange) Empty() bool {
	return r.Start > r.End
}

// Len 区间长度
func (r GenerationRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains 区间是否包含章节号
func (r GenerationRange) Contains(n int) bool {
	return !r.Empty() && r.Start <= n && n <= r.End
}

// Intersects 区间是否与单元相交
func (r GenerationRange) Intersects(u UnitRecord) bool {
	return !r.Empty() && u.HasRange() && u.StartChapter <= r.End && r.Start <= u.EndChapter
}

func (r GenerationRange) String() string {
	return fmt.Sprintf("[%d..%d]", r.Start, r.End)
}

// ParseGenerationRange 解析 "a-b" 或单个章节号
func ParseGenerationRange(s string) (GenerationRange, error) {
	s = strings.TrimSpace(s)
	a, b, found := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return GenerationRange{}, fmt.Errorf("invalid range %q", s)
	}
	end := start
	if found {
		if end, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
			return GenerationRange{}, fmt.Errorf("invalid range %q", s)
		}
	}
	if start < 1 || end < start {
		return GenerationRange{}, fmt.Errorf("invalid range %q", s)
	}
	return NewGenerationRange(start, end), nil
}

// ForeshadowState 伏笔状态
type ForeshadowState string

const (
	ForeshadowBuried   ForeshadowState = "buried"
	ForeshadowResolved ForeshadowState = "resolved"
)

// ForeshadowItem 伏笔条目（由扫描章节派生，不直接存储）
type ForeshadowItem struct {
	Name         string          `json:"name"`
	BuriedAt     int             `json:"buried_at"`
	ReinforcedAt []int           `json:"reinforced_at,omitempty"`
	ResolvedAt   int             `json:"resolved_at,omitempty"` // 0 表示未回收
	State        ForeshadowState `json:"state"`
}

// Resolved 是否已回收
func (f ForeshadowItem) Resolved() bool {
	return f.State == ForeshadowResolved
}
