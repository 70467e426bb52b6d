package dto

import (
	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/application/blueprint/validate"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/entity"
	apperrors "z-novel-blueprint/pkg/errors"
)

// GenerateRequest 区间生成请求
// Start/End 都为 0 且 TotalChapters > 0 时从最后一章续写。
type GenerateRequest struct {
	Start                  int    `json:"start"`
	End                    int    `json:"end"`
	TotalChapters          int    `json:"total_chapters"`
	Fill                   bool   `json:"fill,omitempty"`
	UnitPolicy             string `json:"unit_policy,omitempty"`
	UserGuidance           string `json:"user_guidance,omitempty"`
	GenerationRequirements string `json:"generation_requirements,omitempty"`
}

// Resume 是否为续写请求
func (r *GenerateRequest) Resume() bool {
	return r.Start == 0 && r.End == 0
}

// Validate 校验请求参数
func (r *GenerateRequest) Validate() error {
	switch r.UnitPolicy {
	case "", config.UnitPolicyReuse, config.UnitPolicyRegenerate, config.UnitPolicyNone:
	default:
		return apperrors.ErrInvalidParam.WithDetail("unit_policy must be reuse, regenerate or none")
	}
	if r.Resume() {
		if r.TotalChapters <= 0 {
			return apperrors.ErrInvalidRange.WithDetail("total_chapters is required when start/end are omitted")
		}
		return nil
	}
	if r.Start < 1 || r.End < r.Start {
		return apperrors.ErrInvalidRange.WithDetail(entity.NewGenerationRange(r.Start, r.End).String())
	}
	return nil
}

// ToGeneratorRequest 转换为控制器请求
func (r *GenerateRequest) ToGeneratorRequest(novelID string) generator.Request {
	req := generator.Request{
		NovelID:                novelID,
		Start:                  r.Start,
		End:                    r.End,
		TotalChapters:          r.TotalChapters,
		UnitPolicy:             r.UnitPolicy,
		UserGuidance:           r.UserGuidance,
		GenerationRequirements: r.GenerationRequirements,
	}
	if r.Fill {
		req.Mode = generator.ModeFill
	}
	return req
}

// ToJob 转换为队列任务
func (r *GenerateRequest) ToJob(novelID string) *entity.BlueprintJob {
	var job *entity.BlueprintJob
	if r.Resume() {
		job = entity.NewResumeJob(novelID, r.TotalChapters)
	} else {
		job = entity.NewRangeJob(novelID, r.Start, r.End, r.TotalChapters)
	}
	job.UnitPolicy = r.UnitPolicy
	job.UserGuidance = r.UserGuidance
	job.GenerationRequirements = r.GenerationRequirements
	if r.Fill {
		job.Mode = string(generator.ModeFill)
	}
	return job
}

// RemoveRequest 删除章节请求，区间格式 "a-b" 或单个章节号
type RemoveRequest struct {
	Ranges []string `json:"ranges" binding:"required,min=1"`
}

// RemoveResponse 删除结果
type RemoveResponse struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// BlueprintResponse 目录文档
type BlueprintResponse struct {
	NovelID  string                 `json:"novel_id"`
	Units    []entity.UnitRecord    `json:"units"`
	Chapters []entity.ChapterRecord `json:"chapters"`
	Text     string                 `json:"text,omitempty"`
}

// ChapterResponse 单章及其所属单元
type ChapterResponse struct {
	Chapter entity.ChapterRecord `json:"chapter"`
	Unit    *entity.UnitRecord   `json:"unit,omitempty"`
	Text    string               `json:"text"`
}

// GenerateResponse 同步生成结果
type GenerateResponse struct {
	*generator.Result
	Error *ErrorDetail `json:"error,omitempty"`
}

// EventView 流式生成推送的进度事件
type EventView struct {
	Kind    generator.EventKind     `json:"kind"`
	Range   *entity.GenerationRange `json:"range,omitempty"`
	Text    string                  `json:"text,omitempty"`
	Warning *validate.Warning       `json:"warning,omitempty"`
}

// ToEventView 转换进度事件
func ToEventView(ev generator.Event) EventView {
	v := EventView{Kind: ev.Kind, Text: ev.Text, Warning: ev.Warning}
	if ev.Range != (entity.GenerationRange{}) {
		r := ev.Range
		v.Range = &r
	}
	return v
}

// JobResponse 任务响应
type JobResponse struct {
	*entity.BlueprintJob
	StreamID string `json:"stream_id,omitempty"`
}
