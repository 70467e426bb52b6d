package generator

import (
	"fmt"

	"z-novel-blueprint/internal/domain/entity"
)

// ChunkError 某个子区间生成失败
// Err 为 *errors.AppError（生成为空或 LLM 调用失败），调用方可只重试 Range。
type ChunkError struct {
	Range entity.GenerationRange
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("章节 %s 生成失败: %v", e.Range, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}
