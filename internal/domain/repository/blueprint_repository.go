// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"
)

// BlueprintRepository 章节目录文档存储
// 文档以单个 UTF-8 文本文件保存，没有版本标记。
type BlueprintRepository interface {
	// Load 读取目录文本，不存在时返回空字符串
	Load(ctx context.Context, novelID string) (string, error)
	// Save 整体覆盖保存目录文本，实现必须保证不会被观察到写了一半的文件
	Save(ctx context.Context, novelID string, text string) error
	// LoadArchitecture 读取小说架构文本
	LoadArchitecture(ctx context.Context, novelID string) (string, error)
}

// RangeLocker 串行化同一文档上的区间生成
type RangeLocker interface {
	// Acquire 获取锁，返回释放函数
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
