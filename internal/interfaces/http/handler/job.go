package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/internal/domain/repository"
	"z-novel-blueprint/internal/interfaces/http/dto"
	"z-novel-blueprint/pkg/logger"
)

// JobPublisher 任务投递，由 messaging.Producer 实现
type JobPublisher interface {
	PublishBlueprintJob(ctx context.Context, job *entity.BlueprintJob) (string, error)
}

// JobHandler 异步任务处理器
// 未配置队列时所有接口返回 503。
type JobHandler struct {
	publisher JobPublisher
	jobRepo   repository.JobRepository
}

// NewJobHandler 创建任务处理器
func NewJobHandler(publisher JobPublisher, jobRepo repository.JobRepository) *JobHandler {
	return &JobHandler{publisher: publisher, jobRepo: jobRepo}
}

func (h *JobHandler) available(c *gin.Context) bool {
	if h == nil || h.publisher == nil || h.jobRepo == nil {
		dto.ServiceUnavailable(c, "job queue not configured")
		return false
	}
	return true
}

// CreateJob 投递异步生成任务
// @Summary 创建异步生成任务
// @Tags Jobs
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.GenerateRequest true "生成请求"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/novels/{nid}/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	if !h.available(c) {
		return
	}
	body, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	novelID := bindNovelID(c)
	if novelID == "" {
		dto.BadRequest(c, "novel id is required")
		return
	}
	job := body.ToJob(novelID)

	streamID, err := h.publisher.PublishBlueprintJob(ctx, job)
	if err != nil {
		logger.Error(ctx, "failed to publish blueprint job", err)
		dto.FromError(c, err)
		return
	}
	if err := h.jobRepo.Save(ctx, job); err != nil {
		// 消息已投递，worker 会重新写入状态
		logger.Warn(ctx, "failed to save queued job", "job_id", job.ID, "error", err.Error())
	}
	logger.Info(ctx, "blueprint job queued", "job_id", job.ID, "type", string(job.Type), "stream_id", streamID)
	dto.Accepted(c, dto.JobResponse{BlueprintJob: job, StreamID: streamID})
}

// GetJob 获取任务状态
// @Summary 获取任务状态
// @Tags Jobs
// @Produce json
// @Param id path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	if !h.available(c) {
		return
	}
	ctx := c.Request.Context()
	job, err := h.jobRepo.Get(ctx, c.Param("id"))
	if err != nil {
		logger.Error(ctx, "failed to get job", err)
		dto.FromError(c, err)
		return
	}
	if job == nil {
		dto.NotFound(c, "job not found")
		return
	}
	dto.Success(c, dto.JobResponse{BlueprintJob: job})
}
