// Package lock 提供单进程内的区间生成锁
package lock

import (
	"context"
	"sync"
	"time"

	"z-novel-blueprint/internal/domain/repository"
	apperrors "z-novel-blueprint/pkg/errors"
)

// Manager 按键管理的进程内锁
// 锁不可重入；超过 TTL 未释放的锁在下一次获取时被回收。
type Manager struct {
	mu    sync.Mutex
	locks map[string]*holder
	seq   uint64
	now   func() time.Time
}

type holder struct {
	id      uint64
	expires time.Time
}

var _ repository.RangeLocker = (*Manager)(nil)

// NewManager 创建锁管理器
func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*holder),
		now:   time.Now,
	}
}

// Acquire 获取锁，锁已被持有时返回 ErrLockBusy
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.ErrCancelled.WithError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.locks[key]; ok && (h.expires.IsZero() || now.Before(h.expires)) {
		return nil, apperrors.ErrLockBusy.WithDetail(key)
	}

	m.seq++
	h := &holder{id: m.seq}
	if ttl > 0 {
		h.expires = now.Add(ttl)
	}
	m.locks[key] = h

	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, h.id) })
	}, nil
}

// release 只释放自己持有的锁
func (m *Manager) release(key string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.locks[key]; ok && h.id == id {
		delete(m.locks, key)
	}
}

// Held 当前被持有（未过期）的锁数量
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for key, h := range m.locks {
		if !h.expires.IsZero() && !now.Before(h.expires) {
			delete(m.locks, key)
			continue
		}
		n++
	}
	return n
}
