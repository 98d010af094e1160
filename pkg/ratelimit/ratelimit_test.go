package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	sw := NewSlidingWindow(2, time.Minute)
	sw.now = func() time.Time { return now }

	assert.True(t, sw.Allow())
	assert.True(t, sw.Allow())
	assert.False(t, sw.Allow())
	assert.Equal(t, 0, sw.Remaining())
	assert.Equal(t, now.Add(time.Minute), sw.ResetTime())

	now = now.Add(time.Minute + time.Second)
	assert.Equal(t, 2, sw.Remaining())
	assert.True(t, sw.Allow())
}

func TestSlidingWindow_WaitCanceled(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	require.NoError(t, sw.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sw.Wait(ctx), context.DeadlineExceeded)
}

func TestKeyed(t *testing.T) {
	k := NewKeyed(1, time.Hour)
	assert.True(t, k.Allow("1.2.3.4"))
	assert.False(t, k.Allow("1.2.3.4"))
	assert.True(t, k.Allow("5.6.7.8"))
	assert.Same(t, k.Get("1.2.3.4"), k.Get("1.2.3.4"))
}

func TestKeyed_EvictsIdleWindows(t *testing.T) {
	now := time.Unix(1000, 0)
	k := NewKeyed(1, time.Minute)
	k.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		assert.True(t, k.Allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, 100, k.Len())

	// 窗口过去后，下一次 Allow 回收所有空闲 key
	now = now.Add(time.Minute + time.Second)
	assert.True(t, k.Allow("10.0.1.1"))
	assert.Equal(t, 1, k.Len())

	// 仍在窗口内的 key 保留且继续限流
	now = now.Add(30 * time.Second)
	assert.False(t, k.Allow("10.0.1.1"))
	now = now.Add(31 * time.Second)
	assert.True(t, k.Allow("10.0.2.2"))
	assert.Equal(t, 1, k.Len(), "10.0.1.1 已滑出窗口")
}
