package model

// BlueprintChunkInput 一次分块章节目录生成的输入
type BlueprintChunkInput struct {
	Architecture string
	// ChapterList 上下文目录（全部单元 + 最近若干章）
	ChapterList      string
	NumberOfChapters int

	Start int
	End   int

	UserGuidance           string
	GenerationRequirements string
}

// BlueprintUnitInput 单元（叙事弧）框架生成的输入
type BlueprintUnitInput struct {
	Architecture     string
	ChapterList      string
	NumberOfChapters int

	Start int
	End   int
	// FirstUnitNumber 新单元的起始编号
	FirstUnitNumber int
	// UnitWidth 建议的单元章节数
	UnitWidth int

	UserGuidance string
}
