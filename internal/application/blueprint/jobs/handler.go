// Package jobs 执行异步目录生成任务
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"z-novel-blueprint/internal/application/blueprint/generator"
	"z-novel-blueprint/internal/config"
	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/internal/domain/repository"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
	"z-novel-blueprint/pkg/metrics"
)

// Runner 由 generator.Generator 实现
type Runner interface {
	GenerateRange(ctx context.Context, req generator.Request) (*generator.Result, error)
	GenerateAll(ctx context.Context, req generator.Request) (*generator.Result, error)
}

// Handler 任务执行器
type Handler struct {
	runner Runner
	jobs   repository.JobRepository
}

// NewHandler 创建任务执行器；jobs 为空时不记录任务状态
func NewHandler(runner Runner, jobs repository.JobRepository) *Handler {
	return &Handler{runner: runner, jobs: jobs}
}

// Handle 执行一次任务投递
// 已完成的任务重复投递时直接返回；失败时返回错误，是否重试由调用方按 IsPermanent 决定。
func (h *Handler) Handle(ctx context.Context, job *entity.BlueprintJob) error {
	if job == nil || job.ID == "" {
		return apperrors.ErrInvalidParam.WithDetail("job id is required")
	}
	ctx = logger.WithContext(ctx, logger.JobIDKey, job.ID)

	var prior []int
	if h.jobs != nil {
		stored, err := h.jobs.Get(ctx, job.ID)
		if err != nil {
			return err
		}
		if stored != nil {
			if stored.Status == entity.JobStatusCompleted {
				logger.Info(ctx, "job already completed, skipping")
				metrics.BlueprintJobsTotal.WithLabelValues(string(job.Type), "skipped").Inc()
				return nil
			}
			job.Attempts = stored.Attempts
			prior = stored.Written
		}
	}

	job.MarkRunning()
	h.save(ctx, job)

	req := generator.Request{
		NovelID:                job.NovelID,
		Start:                  job.Start,
		End:                    job.End,
		TotalChapters:          job.TotalChapters,
		Mode:                   generator.Mode(job.Mode),
		UnitPolicy:             job.UnitPolicy,
		UserGuidance:           job.UserGuidance,
		GenerationRequirements: job.GenerationRequirements,
	}
	if job.Attempts > 1 && job.Type == entity.JobTypeBlueprintRange {
		req = resumeRequest(req, prior)
		logger.Info(ctx, "retrying blueprint job",
			"attempts", job.Attempts,
			"start", req.Start,
			"mode", string(req.Mode),
		)
	}

	var (
		res *generator.Result
		err error
	)
	switch job.Type {
	case entity.JobTypeBlueprintRange:
		res, err = h.runner.GenerateRange(ctx, req)
	case entity.JobTypeBlueprintResume:
		res, err = h.runner.GenerateAll(ctx, req)
	default:
		err = apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown job type %q", job.Type))
	}

	written := prior
	if res != nil {
		written = mergeWritten(prior, res.Written)
	}
	if err != nil {
		job.Fail(err.Error(), written)
		h.save(ctx, job)
		metrics.BlueprintJobsTotal.WithLabelValues(string(job.Type), "failed").Inc()
		logger.Error(ctx, "blueprint job failed", err,
			"attempts", job.Attempts,
			"written", len(written),
			"permanent", IsPermanent(err),
		)
		return err
	}

	job.Complete(written, len(res.Warnings))
	h.save(ctx, job)
	metrics.BlueprintJobsTotal.WithLabelValues(string(job.Type), "completed").Inc()
	logger.Info(ctx, "blueprint job completed",
		"written", len(written),
		"warnings", len(res.Warnings),
		"duration_ms", job.DurationMs,
	)
	return nil
}

// resumeRequest 重试时跳过前几次尝试已经写入的章节
// 子区间按升序落盘，written 的最大值之前都已完成；单元在首个子区间之前已落盘，不再重新生成。
// 请求区间已全部写入时改为补全模式，只补缺失的章节。
func resumeRequest(req generator.Request, written []int) generator.Request {
	last := 0
	for _, n := range written {
		last = max(last, n)
	}
	if last < req.Start {
		return req
	}
	req.UnitPolicy = config.UnitPolicyNone
	if last >= req.End {
		req.Mode = generator.ModeFill
		return req
	}
	req.Start = last + 1
	return req
}

func mergeWritten(prior, written []int) []int {
	if len(prior) == 0 {
		return written
	}
	out := append(append([]int(nil), prior...), written...)
	slices.Sort(out)
	return slices.Compact(out)
}

// save 状态写入失败不影响任务本身
func (h *Handler) save(ctx context.Context, job *entity.BlueprintJob) {
	if h.jobs == nil {
		return
	}
	if err := h.jobs.Save(ctx, job); err != nil {
		logger.Warn(ctx, "failed to save job status", "error", err.Error())
	}
}

// IsPermanent 重试也不会成功的错误
func IsPermanent(err error) bool {
	return errors.Is(err, apperrors.ErrInvalidParam) ||
		errors.Is(err, apperrors.ErrInvalidRange) ||
		errors.Is(err, apperrors.ErrArchitectureMissing)
}
