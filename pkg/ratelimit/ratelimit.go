package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow 滑动窗口限流：任意 windowSize 时间内最多 limit 次
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	now        func() time.Time

	mu       sync.Mutex
	requests []time.Time
}

// NewSlidingWindow 创建滑动窗口限流器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
	}
}

// prune 移除窗口外的请求，调用方持有锁
func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.requests = append(sw.requests[:0], sw.requests[i:]...)
	}
}

// Allow 检查并占用一次额度
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.prune(now)
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Remaining 当前窗口内剩余次数
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(sw.now())
	if n := sw.limit - len(sw.requests); n > 0 {
		return n
	}
	return 0
}

// ResetTime 最早一次请求滑出窗口的时间
func (sw *SlidingWindow) ResetTime() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	now := sw.now()
	sw.prune(now)
	if len(sw.requests) == 0 {
		return now
	}
	return sw.requests[0].Add(sw.windowSize)
}

// Wait 阻塞直到拿到额度或 ctx 取消
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}
		wait := time.Until(sw.ResetTime())
		if wait <= 0 {
			wait = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Keyed 按 key（例如客户端 IP）分别限流。
// 窗口内已无请求的 key 会被回收，每个 windowSize 最多清理一次。
type Keyed struct {
	limit      int
	windowSize time.Duration
	now        func() time.Time

	mu        sync.Mutex
	limiters  map[string]*SlidingWindow
	lastSweep time.Time
}

// NewKeyed 创建按 key 限流的管理器
func NewKeyed(limit int, windowSize time.Duration) *Keyed {
	return &Keyed{
		limit:      limit,
		windowSize: windowSize,
		now:        time.Now,
		limiters:   make(map[string]*SlidingWindow),
	}
}

// getLocked 调用方持有 k.mu
func (k *Keyed) getLocked(key string) *SlidingWindow {
	l, ok := k.limiters[key]
	if !ok {
		l = NewSlidingWindow(k.limit, k.windowSize)
		l.now = k.now
		k.limiters[key] = l
	}
	return l
}

// sweepLocked 删除窗口内没有请求的限流器，调用方持有 k.mu
func (k *Keyed) sweepLocked(now time.Time) {
	if now.Sub(k.lastSweep) < k.windowSize {
		return
	}
	k.lastSweep = now
	for key, l := range k.limiters {
		l.mu.Lock()
		l.prune(now)
		idle := len(l.requests) == 0
		l.mu.Unlock()
		if idle {
			delete(k.limiters, key)
		}
	}
}

// Get 返回 key 对应的限流器，不存在则创建
func (k *Keyed) Get(key string) *SlidingWindow {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.getLocked(key)
}

// Allow 对 key 检查并占用一次额度
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sweepLocked(k.now())
	// 持锁占用额度，避免限流器在 Allow 之前被回收
	return k.getLocked(key).Allow()
}

// Len 当前跟踪的 key 数
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
