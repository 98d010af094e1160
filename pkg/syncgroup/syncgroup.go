package syncgroup

import (
	"context"
	"sync"
)

// Group 管理一组带 context 的 goroutine：Go 自动 Add/Done，Wait 等待全部结束。
// Close 之后的 Go 调用会被忽略，用于关闭阶段拒绝新任务。
type Group struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running int
}

// New 创建 Group
func New() *Group {
	return &Group{}
}

// Go 启动 fn；Group 已关闭时返回 false 且不执行
func (g *Group) Go(ctx context.Context, fn func(ctx context.Context)) bool {
	if fn == nil {
		return false
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.running++
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer func() {
			g.mu.Lock()
			g.running--
			g.mu.Unlock()
			g.wg.Done()
		}()
		fn(ctx)
	}()
	return true
}

// Running 当前运行中的 goroutine 数量
func (g *Group) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Close 拒绝后续 Go 调用，不等待
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}

// Wait 等待所有已启动的 goroutine 结束
func (g *Group) Wait() {
	g.wg.Wait()
}

// WaitContext 等待全部结束或 ctx 到期，超时返回 ctx.Err()
func (g *Group) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
