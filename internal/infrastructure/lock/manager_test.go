package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "z-novel-blueprint/pkg/errors"
)

func TestManager_AcquireRelease(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "blueprint:lock:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Held())

	_, err = m.Acquire(ctx, "blueprint:lock:a", time.Minute)
	assert.ErrorIs(t, err, apperrors.ErrLockBusy)

	other, err := m.Acquire(ctx, "blueprint:lock:b", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()
	assert.Equal(t, 0, m.Held())

	again, err := m.Acquire(ctx, "blueprint:lock:a", time.Minute)
	require.NoError(t, err)
	again()
}

func TestManager_ExpiredLockIsReclaimed(t *testing.T) {
	m := NewManager()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale, err := m.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := m.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	// 过期持有者的释放不影响新持有者
	stale()
	_, err = m.Acquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, apperrors.ErrLockBusy)
	fresh()
}

func TestManager_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewManager().Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, apperrors.ErrCancelled)
}

func TestManager_ConcurrentAcquireHasSingleWinner(t *testing.T) {
	m := NewManager()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(context.Background(), "k", time.Minute); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
