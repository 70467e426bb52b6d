package generator

import "z-novel-blueprint/internal/domain/entity"

// DefaultTokensPerChapter 单章目录的 token 估算
const DefaultTokensPerChapter = 100

// ComputeChunkSize 根据输出 token 上限计算每次调用生成的章节数
// 可容纳章节数向下取整到 10 的倍数后再留出 10 章余量，结果限制在 [1, rangeLen]。
func ComputeChunkSize(rangeLen, maxTokens, tokensPerChapter int) int {
	if rangeLen <= 0 {
		return 0
	}
	if tokensPerChapter <= 0 {
		tokensPerChapter = DefaultTokensPerChapter
	}
	size := (maxTokens/tokensPerChapter)/10*10 - 10
	if size < 1 {
		size = 1
	}
	if size > rangeLen {
		size = rangeLen
	}
	return size
}

// SplitChunks 将区间切分为连续的子区间
func SplitChunks(rng entity.GenerationRange, size int) []entity.GenerationRange {
	if rng.Empty() {
		return nil
	}
	if size <= 0 {
		size = rng.Len()
	}
	chunks := make([]entity.GenerationRange, 0, (rng.Len()+size-1)/size)
	for start := rng.Start; start <= rng.End; start += size {
		end := start + size - 1
		if end > rng.End {
			end = rng.End
		}
		chunks = append(chunks, entity.NewGenerationRange(start, end))
	}
	return chunks
}
