package shutdown

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/betbot/statusdash/pkg/logger"
)

// Handler 关闭回调，应在 ctx 到期前返回
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器：并发执行所有回调，收集第一个错误
type Manager struct {
	mu       sync.Mutex
	handlers []namedHandler
	done     bool
}

// NewManager 创建关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, fn Handler) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: fn})
}

// Shutdown 执行所有回调（阻塞），只生效一次。
// ctx 应带超时；超时后立即返回 ctx.Err()，未完成的回调继续在后台结束。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	handlers := m.handlers
	m.mu.Unlock()

	if len(handlers) == 0 {
		logger.Info("没有注册的关闭回调")
		return nil
	}
	logger.Infof("开始优雅关闭，共 %d 个回调", len(handlers))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for _, h := range handlers {
		wg.Add(1)
		go func(h namedHandler) {
			defer wg.Done()
			if err := h.fn(ctx); err != nil {
				logger.Warnf("关闭回调 %s 失败: %v", h.name, err)
				errMu.Lock()
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "shutdown %s", h.name)
				}
				errMu.Unlock()
			}
		}(h)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("所有关闭回调已完成")
		errMu.Lock()
		defer errMu.Unlock()
		return firstErr
	case <-ctx.Done():
		logger.Warnf("关闭超时: %v", ctx.Err())
		return ctx.Err()
	}
}
