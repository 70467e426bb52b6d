package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"z-novel-blueprint/internal/domain/repository"
	apperrors "z-novel-blueprint/pkg/errors"
	"z-novel-blueprint/pkg/logger"
)

// releaseScript 仅当值等于持有者令牌时删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 的分布式区间锁
type Locker struct {
	client *Client
}

var _ repository.RangeLocker = (*Locker)(nil)

// NewLocker 创建分布式锁
func NewLocker(client *Client) *Locker {
	return &Locker{client: client}
}

// Acquire 获取锁，锁已被持有时返回 ErrLockBusy
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.claim(ctx, key, token, ttl)
	if err != nil {
		return nil, apperrors.ErrCache.WithDetail("acquire " + key).WithError(err)
	}
	if !ok {
		detail := key
		if left, err := l.client.remaining(ctx, key); err == nil && left > 0 {
			detail += ", expires in " + left.Round(time.Second).String()
		}
		return nil, apperrors.ErrLockBusy.WithDetail(detail)
	}

	logger.Debug(ctx, "blueprint lock acquired", "key", key, "ttl", ttl.String())
	return func() {
		// 释放不受调用方取消影响
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := l.client.traced(rctx, "release", key, func(ctx context.Context) error {
			return releaseScript.Run(ctx, l.client.Redis(), []string{key}, token).Err()
		})
		if err != nil && !IsNil(err) {
			logger.Error(rctx, "failed to release blueprint lock", err, "key", key)
		}
	}, nil
}
