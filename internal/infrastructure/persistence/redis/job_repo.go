package redis

import (
	"context"
	"encoding/json"
	"time"

	"z-novel-blueprint/internal/domain/entity"
	"z-novel-blueprint/internal/domain/repository"
	apperrors "z-novel-blueprint/pkg/errors"
)

// DefaultJobTTL 任务状态保留时间
const DefaultJobTTL = 7 * 24 * time.Hour

// JobRepository 以 JSON 保存任务状态
type JobRepository struct {
	client *Client
	ttl    time.Duration
}

var _ repository.JobRepository = (*JobRepository)(nil)

// NewJobRepository 创建任务状态存储
func NewJobRepository(client *Client, ttl time.Duration) *JobRepository {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobRepository{client: client, ttl: ttl}
}

// JobKey 任务状态的键
func JobKey(id string) string {
	return "blueprint:job:" + id
}

// Save 保存任务
func (r *JobRepository) Save(ctx context.Context, job *entity.BlueprintJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return apperrors.ErrInternalError.WithError(err)
	}
	if err := r.client.set(ctx, JobKey(job.ID), data, r.ttl); err != nil {
		return apperrors.ErrCache.WithDetail(job.ID).WithError(err)
	}
	return nil
}

// Get 读取任务
func (r *JobRepository) Get(ctx context.Context, id string) (*entity.BlueprintJob, error) {
	raw, err := r.client.get(ctx, JobKey(id))
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, apperrors.ErrCache.WithDetail(id).WithError(err)
	}
	var job entity.BlueprintJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, apperrors.ErrInternalError.WithDetail(id).WithError(err)
	}
	return &job, nil
}
