package entity

import (
	"time"
)

// JobType 任务类型
type JobType string

const (
	// JobTypeBlueprintRange 生成指定区间
	JobTypeBlueprintRange JobType = "blueprint_range"
	// JobTypeBlueprintResume 从已有最大章节续写到全书章节数
	JobTypeBlueprintResume JobType = "blueprint_resume"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// BlueprintJob 异步目录生成任务
type BlueprintJob struct {
	ID                     string     `json:"id"`
	Type                   JobType    `json:"type"`
	NovelID                string     `json:"novel_id"`
	Start                  int        `json:"start"`
	End                    int        `json:"end"`
	TotalChapters          int        `json:"total_chapters"`
	Mode                   string     `json:"mode,omitempty"`
	UnitPolicy             string     `json:"unit_policy,omitempty"`
	UserGuidance           string     `json:"user_guidance,omitempty"`
	GenerationRequirements string     `json:"generation_requirements,omitempty"`
	Status                 JobStatus  `json:"status"`
	ErrorMessage           string     `json:"error_message,omitempty"`
	Written                []int      `json:"written,omitempty"`
	Warnings               int        `json:"warnings"`
	Attempts               int        `json:"attempts"`
	DurationMs             int        `json:"duration_ms,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	StartedAt              *time.Time `json:"started_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
}

// NewRangeJob 创建区间生成任务
func NewRangeJob(novelID string, start, end, total int) *BlueprintJob {
	return &BlueprintJob{
		Type:          JobTypeBlueprintRange,
		NovelID:       novelID,
		Start:         start,
		End:           end,
		TotalChapters: total,
		Status:        JobStatusPending,
		CreatedAt:     time.Now(),
	}
}

// NewResumeJob 创建续写任务
func NewResumeJob(novelID string, total int) *BlueprintJob {
	return &BlueprintJob{
		Type:          JobTypeBlueprintResume,
		NovelID:       novelID,
		TotalChapters: total,
		Status:        JobStatusPending,
		CreatedAt:     time.Now(),
	}
}

// Range 任务请求的区间
func (j *BlueprintJob) Range() GenerationRange {
	return NewGenerationRange(j.Start, j.End)
}

// MarkRunning 开始执行（每次投递计一次尝试）
func (j *BlueprintJob) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.CompletedAt = nil
	j.ErrorMessage = ""
	j.Attempts++
}

// Complete 完成任务
func (j *BlueprintJob) Complete(written []int, warnings int) {
	j.finish(JobStatusCompleted)
	j.Written = written
	j.Warnings = warnings
}

// Fail 任务失败；written 为失败前已持久化的章节
func (j *BlueprintJob) Fail(errMsg string, written []int) {
	j.finish(JobStatusFailed)
	j.ErrorMessage = errMsg
	j.Written = written
}

func (j *BlueprintJob) finish(status JobStatus) {
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}
