package repository

import (
	"context"

	"z-novel-blueprint/internal/domain/entity"
)

// JobRepository 异步任务状态存储
type JobRepository interface {
	// Save 保存任务当前状态
	Save(ctx context.Context, job *entity.BlueprintJob) error
	// Get 读取任务，不存在时返回 nil, nil
	Get(ctx context.Context, id string) (*entity.BlueprintJob, error)
}
